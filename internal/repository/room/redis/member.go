package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/syncroom/server/internal/repository/room"
)

func (r repo) getMemberKey(memberId string) string {
	return "member:" + memberId
}

func (r repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":memberlist"
}

func (r repo) getAdminKey(roomId string) string {
	return "room:" + roomId + ":admin"
}

func (r repo) SetMember(ctx context.Context, params *room.SetMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	member := room.Member{
		RoomId:   params.RoomId,
		IsAdmin:  params.IsAdmin,
		LastSeen: params.LastSeen,
	}
	memberKey := r.getMemberKey(params.MemberId)
	pipe.HSet(ctx, memberKey, member)
	pipe.Expire(ctx, memberKey, r.expireDuration)

	memberListKey := r.getMemberListKey(params.RoomId)
	r.addWithIncrement(ctx, pipe, memberListKey, params.MemberId)
	pipe.Expire(ctx, memberListKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set member: %w", err)
	}

	return nil
}

func (r repo) GetMember(ctx context.Context, memberId string) (room.Member, error) {
	memberKey := r.getMemberKey(memberId)
	res, err := r.rc.Exists(ctx, memberKey).Result()
	if err != nil {
		return room.Member{}, fmt.Errorf("failed to check if member exists: %w", err)
	}
	if res == 0 {
		return room.Member{}, room.ErrMemberNotFound
	}

	var member room.Member
	if err := r.rc.HGetAll(ctx, memberKey).Scan(&member); err != nil {
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	r.rc.Expire(ctx, memberKey, r.expireDuration)

	return member, nil
}

func (r repo) RemoveMember(ctx context.Context, params *room.RemoveMemberParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, r.getMemberKey(params.MemberId))
	pipe.ZRem(ctx, r.getMemberListKey(params.RoomId), params.MemberId)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	return nil
}

// GetMemberIds returns the members of a room in join order.
func (r repo) GetMemberIds(ctx context.Context, roomId string) ([]string, error) {
	memberListKey := r.getMemberListKey(roomId)
	memberIds, err := r.rc.ZRange(ctx, memberListKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get member ids: %w", err)
	}

	r.rc.Expire(ctx, memberListKey, r.expireDuration)

	return memberIds, nil
}

func (r repo) GetMemberRoomId(ctx context.Context, memberId string) (string, error) {
	roomId, err := r.rc.HGet(ctx, r.getMemberKey(memberId), "room_id").Result()
	if err != nil {
		if err == redis.Nil {
			return "", room.ErrMemberNotFound
		}
		return "", fmt.Errorf("failed to get member room id: %w", err)
	}

	return roomId, nil
}

func (r repo) IsMemberAdmin(ctx context.Context, memberId string) (bool, error) {
	isAdmin, err := r.rc.HGet(ctx, r.getMemberKey(memberId), "is_admin").Result()
	if err != nil {
		if err == redis.Nil {
			return false, room.ErrMemberNotFound
		}
		return false, fmt.Errorf("failed to check if member is admin: %w", err)
	}

	return isAdmin == "1", nil
}

func (r repo) UpdateMemberLastSeen(ctx context.Context, memberId string, lastSeen int64) error {
	memberKey := r.getMemberKey(memberId)
	if err := r.rc.HSet(ctx, memberKey, "last_seen", lastSeen).Err(); err != nil {
		return fmt.Errorf("failed to update member last seen: %w", err)
	}

	r.rc.Expire(ctx, memberKey, r.expireDuration)

	return nil
}

// GrantAdmin atomically claims the room's admin slot for the member.
// The first writer wins; it reports whether the claim succeeded.
func (r repo) GrantAdmin(ctx context.Context, params *room.GrantAdminParams) (bool, error) {
	r.logger.DebugContext(ctx, "called", "params", params)
	granted, err := r.rc.SetNX(ctx, r.getAdminKey(params.RoomId), params.MemberId, r.expireDuration).Result()
	if err != nil {
		return false, fmt.Errorf("failed to grant admin: %w", err)
	}

	if granted {
		if err := r.rc.HSet(ctx, r.getMemberKey(params.MemberId), "is_admin", true).Err(); err != nil {
			return false, fmt.Errorf("failed to mark member admin: %w", err)
		}
	}

	return granted, nil
}

func (r repo) GetAdminId(ctx context.Context, roomId string) (string, error) {
	adminKey := r.getAdminKey(roomId)
	adminId, err := r.rc.Get(ctx, adminKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", room.ErrAdminNotFound
		}
		return "", fmt.Errorf("failed to get admin id: %w", err)
	}

	// the admin key ages like every other room key, an active room must
	// never lose its admin to the TTL
	r.rc.Expire(ctx, adminKey, r.expireDuration)

	return adminId, nil
}

// RemoveAdmin releases the admin slot if memberId currently holds it. The
// room stays adminless until another member claims the slot on join.
func (r repo) RemoveAdmin(ctx context.Context, roomId, memberId string) error {
	adminId, err := r.GetAdminId(ctx, roomId)
	if err != nil {
		if err == room.ErrAdminNotFound {
			return nil
		}
		return err
	}

	if adminId != memberId {
		return nil
	}

	if err := r.rc.Del(ctx, r.getAdminKey(roomId)).Err(); err != nil {
		return fmt.Errorf("failed to remove admin: %w", err)
	}

	return nil
}

// RemoveRoom deletes the remaining room keys once the last member left.
func (r repo) RemoveRoom(ctx context.Context, roomId string) error {
	r.logger.DebugContext(ctx, "called", "roomId", roomId)
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, r.getPlayerKey(roomId))
	pipe.Del(ctx, r.getMemberListKey(roomId))
	pipe.Del(ctx, r.getAdminKey(roomId))

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove room: %w", err)
	}

	return nil
}
