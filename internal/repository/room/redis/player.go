package redis

import (
	"context"
	"fmt"

	"github.com/syncroom/server/internal/repository/room"
)

func (r repo) getPlayerKey(roomId string) string {
	return "room:" + roomId + ":player"
}

func (r repo) SetPlayer(ctx context.Context, params *room.SetPlayerParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	pipe := r.rc.TxPipeline()

	player := room.Player{
		TrackId:     params.TrackId,
		CurrentTime: params.CurrentTime,
		IsPlaying:   params.IsPlaying,
		Autoplay:    params.Autoplay,
		UpdatedAt:   params.UpdatedAt,
	}
	playerKey := r.getPlayerKey(params.RoomId)
	pipe.HSet(ctx, playerKey, player)
	pipe.Expire(ctx, playerKey, r.expireDuration)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set player: %w", err)
	}

	return nil
}

func (r repo) GetPlayer(ctx context.Context, roomId string) (room.Player, error) {
	playerKey := r.getPlayerKey(roomId)
	res, err := r.rc.Exists(ctx, playerKey).Result()
	if err != nil {
		return room.Player{}, fmt.Errorf("failed to check if player exists: %w", err)
	}
	if res == 0 {
		return room.Player{}, room.ErrPlayerNotFound
	}

	var player room.Player
	if err := r.rc.HGetAll(ctx, playerKey).Scan(&player); err != nil {
		return room.Player{}, fmt.Errorf("failed to get player: %w", err)
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return player, nil
}

func (r repo) IsPlayerExists(ctx context.Context, roomId string) (bool, error) {
	res, err := r.rc.Exists(ctx, r.getPlayerKey(roomId)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check if player exists: %w", err)
	}

	return res > 0, nil
}

func (r repo) RemovePlayer(ctx context.Context, roomId string) error {
	res, err := r.rc.Del(ctx, r.getPlayerKey(roomId)).Result()
	if err != nil {
		return fmt.Errorf("failed to remove player: %w", err)
	}

	if res == 0 {
		return room.ErrPlayerNotFound
	}

	return nil
}

func (r repo) updatePlayerFields(ctx context.Context, roomId string, fields ...any) error {
	playerKey := r.getPlayerKey(roomId)
	cmd := r.rc.Exists(ctx, playerKey)
	if err := cmd.Err(); err != nil {
		return err
	}

	if cmd.Val() == 0 {
		return room.ErrPlayerNotFound
	}

	if err := r.rc.HSet(ctx, playerKey, fields...).Err(); err != nil {
		return err
	}

	r.rc.Expire(ctx, playerKey, r.expireDuration)

	return nil
}

func (r repo) UpdatePlayerPosition(ctx context.Context, params *room.UpdatePlayerPositionParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	return r.updatePlayerFields(ctx, params.RoomId,
		"current_time", params.CurrentTime,
		"updated_at", params.UpdatedAt,
	)
}

func (r repo) UpdatePlayerIsPlaying(ctx context.Context, params *room.UpdatePlayerIsPlayingParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	return r.updatePlayerFields(ctx, params.RoomId,
		"is_playing", params.IsPlaying,
		"updated_at", params.UpdatedAt,
	)
}

// UpdatePlayerTrack resets the position to zero in the same write as the
// track swap so no reader observes the new track at the old position.
func (r repo) UpdatePlayerTrack(ctx context.Context, params *room.UpdatePlayerTrackParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	return r.updatePlayerFields(ctx, params.RoomId,
		"track_id", params.TrackId,
		"current_time", 0.0,
		"updated_at", params.UpdatedAt,
	)
}

func (r repo) UpdatePlayerAutoplay(ctx context.Context, params *room.UpdatePlayerAutoplayParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	return r.updatePlayerFields(ctx, params.RoomId,
		"autoplay", params.Autoplay,
		"updated_at", params.UpdatedAt,
	)
}

func (r repo) UpdatePlayerState(ctx context.Context, params *room.UpdatePlayerStateParams) error {
	r.logger.DebugContext(ctx, "called", "params", params)
	return r.updatePlayerFields(ctx, params.RoomId,
		"track_id", params.TrackId,
		"current_time", params.CurrentTime,
		"is_playing", params.IsPlaying,
		"autoplay", params.Autoplay,
		"updated_at", params.UpdatedAt,
	)
}
