package room

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/repository/room"
)

type CreateRoomParams struct {
	Conn    *websocket.Conn
	RoomId  string
	TrackId string
}

type CreateRoomResponse struct {
	MemberId string
	RoomId   string
	IsAdmin  bool
	State    State
}

// CreateRoom declares a room and seeds its playback state with the supplied
// track. The admin slot goes to the first declarer; a create for an already
// existing room behaves like a join-as-admin request and leaves the seeded
// state untouched.
func (s service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	roomId := params.RoomId
	if roomId == "" {
		roomId = s.generator.GenerateRandomString(8)
	}

	memberId, isAdmin, err := s.addMember(ctx, params.Conn, roomId, true)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	exists, err := s.roomRepo.IsPlayerExists(ctx, roomId)
	if err != nil {
		return CreateRoomResponse{}, fmt.Errorf("failed to check if player exists: %w", err)
	}
	if !exists {
		if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
			TrackId:     params.TrackId,
			CurrentTime: 0,
			IsPlaying:   false,
			Autoplay:    false,
			UpdatedAt:   s.now(),
			RoomId:      roomId,
		}); err != nil {
			return CreateRoomResponse{}, fmt.Errorf("failed to set player: %w", err)
		}
	}

	state, err := s.GetRoomState(ctx, roomId)
	if err != nil {
		return CreateRoomResponse{}, err
	}

	return CreateRoomResponse{
		MemberId: memberId,
		RoomId:   roomId,
		IsAdmin:  isAdmin,
		State:    state,
	}, nil
}

type JoinRoomParams struct {
	Conn       *websocket.Conn
	RoomId     string
	WantsAdmin bool
}

type JoinRoomResponse struct {
	MemberId string
	IsAdmin  bool
	State    State
}

// JoinRoom binds a connection to a room, creating the room with an empty
// playback state when the id is unseen. WantsAdmin is a request, not a
// grant: the admin slot is only claimed if the room has no admin.
func (s service) JoinRoom(ctx context.Context, params *JoinRoomParams) (JoinRoomResponse, error) {
	memberId, isAdmin, err := s.addMember(ctx, params.Conn, params.RoomId, params.WantsAdmin)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	exists, err := s.roomRepo.IsPlayerExists(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, fmt.Errorf("failed to check if player exists: %w", err)
	}
	if !exists {
		if err := s.roomRepo.SetPlayer(ctx, &room.SetPlayerParams{
			UpdatedAt: s.now(),
			RoomId:    params.RoomId,
		}); err != nil {
			return JoinRoomResponse{}, fmt.Errorf("failed to set player: %w", err)
		}
	}

	state, err := s.GetRoomState(ctx, params.RoomId)
	if err != nil {
		return JoinRoomResponse{}, err
	}

	return JoinRoomResponse{
		MemberId: memberId,
		IsAdmin:  isAdmin,
		State:    state,
	}, nil
}

func (s service) addMember(ctx context.Context, conn *websocket.Conn, roomId string, wantsAdmin bool) (string, bool, error) {
	memberIds, err := s.roomRepo.GetMemberIds(ctx, roomId)
	if err != nil {
		return "", false, fmt.Errorf("failed to get member ids: %w", err)
	}
	if len(memberIds) >= s.membersLimit {
		return "", false, ErrRoomFull
	}

	memberId := uuid.NewString()
	// the connection binding goes first: it is the only step that fails for
	// a conn that is already registered, and failing here leaves no room
	// state behind
	if err := s.connRepo.Add(conn, memberId); err != nil {
		return "", false, fmt.Errorf("failed to add conn: %w", err)
	}

	if err := s.roomRepo.SetMember(ctx, &room.SetMemberParams{
		MemberId: memberId,
		RoomId:   roomId,
		IsAdmin:  false,
		LastSeen: s.now(),
	}); err != nil {
		if removeErr := s.connRepo.RemoveByMemberId(memberId); removeErr != nil {
			s.logger.InfoContext(ctx, "failed to remove conn", "error", removeErr)
		}
		return "", false, fmt.Errorf("failed to set member: %w", err)
	}

	isAdmin := false
	if wantsAdmin {
		isAdmin, err = s.roomRepo.GrantAdmin(ctx, &room.GrantAdminParams{
			MemberId: memberId,
			RoomId:   roomId,
		})
		if err != nil {
			// roll back so the half-joined member never counts against the
			// limit or squats on the admin slot
			if removeErr := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
				MemberId: memberId,
				RoomId:   roomId,
			}); removeErr != nil {
				s.logger.InfoContext(ctx, "failed to remove member", "error", removeErr)
			}
			if removeErr := s.connRepo.RemoveByMemberId(memberId); removeErr != nil {
				s.logger.InfoContext(ctx, "failed to remove conn", "error", removeErr)
			}
			return "", false, fmt.Errorf("failed to grant admin: %w", err)
		}
	}

	return memberId, isAdmin, nil
}

func (s service) GetRoomState(ctx context.Context, roomId string) (State, error) {
	player, err := s.roomRepo.GetPlayer(ctx, roomId)
	if err != nil {
		if err == room.ErrPlayerNotFound {
			return State{}, ErrRoomNotFound
		}
		return State{}, fmt.Errorf("failed to get player: %w", err)
	}

	return State{
		TrackId:     player.TrackId,
		CurrentTime: player.CurrentTime,
		IsPlaying:   player.IsPlaying,
		Autoplay:    player.Autoplay,
		UpdatedAt:   player.UpdatedAt,
	}, nil
}

type DisconnectMemberParams struct {
	MemberId string
	RoomId   string
}

type DisconnectMemberResponse struct {
	IsRoomDeleted bool
}

// DisconnectMember removes a member and garbage collects the room when it
// was the last one. An admin leaving releases the admin slot without
// promoting anyone; the room stays adminless until a joiner claims it.
func (s service) DisconnectMember(ctx context.Context, params *DisconnectMemberParams) (DisconnectMemberResponse, error) {
	if err := s.roomRepo.RemoveAdmin(ctx, params.RoomId, params.MemberId); err != nil {
		s.logger.InfoContext(ctx, "failed to remove admin", "error", err)
	}

	if err := s.roomRepo.RemoveMember(ctx, &room.RemoveMemberParams{
		MemberId: params.MemberId,
		RoomId:   params.RoomId,
	}); err != nil {
		s.logger.InfoContext(ctx, "failed to remove member", "error", err)
	}

	if err := s.connRepo.RemoveByMemberId(params.MemberId); err != nil {
		s.logger.InfoContext(ctx, "failed to remove conn", "error", err)
	}

	memberIds, err := s.roomRepo.GetMemberIds(ctx, params.RoomId)
	if err != nil {
		return DisconnectMemberResponse{}, fmt.Errorf("failed to get member ids: %w", err)
	}

	if len(memberIds) == 0 {
		if err := s.roomRepo.RemoveRoom(ctx, params.RoomId); err != nil {
			return DisconnectMemberResponse{}, fmt.Errorf("failed to remove room: %w", err)
		}

		return DisconnectMemberResponse{IsRoomDeleted: true}, nil
	}

	return DisconnectMemberResponse{IsRoomDeleted: false}, nil
}
