package room

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/repository/room"
)

// checkIfMemberAdmin enforces the single-writer rule: only the member
// currently holding the room's admin slot may mutate playback state.
func (s service) checkIfMemberAdmin(ctx context.Context, roomId, memberId string) error {
	adminId, err := s.roomRepo.GetAdminId(ctx, roomId)
	if err != nil {
		if err == room.ErrAdminNotFound {
			return ErrPermissionDenied
		}
		return fmt.Errorf("failed to get admin id: %w", err)
	}

	if adminId != memberId {
		return ErrPermissionDenied
	}

	return nil
}

type UpdatePlayerPositionParams struct {
	Time     float64
	SenderId string
	RoomId   string
}

type UpdatePlayerPositionResponse struct {
	Conns []*websocket.Conn
}

func (s service) UpdatePlayerPosition(ctx context.Context, params *UpdatePlayerPositionParams) (UpdatePlayerPositionResponse, error) {
	if err := s.checkIfMemberAdmin(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdatePlayerPositionResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerPosition(ctx, &room.UpdatePlayerPositionParams{
		CurrentTime: params.Time,
		UpdatedAt:   s.now(),
		RoomId:      params.RoomId,
	}); err != nil {
		return UpdatePlayerPositionResponse{}, fmt.Errorf("failed to update player position: %w", err)
	}

	conns, err := s.getOtherConns(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return UpdatePlayerPositionResponse{}, err
	}

	return UpdatePlayerPositionResponse{Conns: conns}, nil
}

type UpdatePlayerIsPlayingParams struct {
	IsPlaying bool
	SenderId  string
	RoomId    string
}

type UpdatePlayerIsPlayingResponse struct {
	Conns []*websocket.Conn
}

func (s service) UpdatePlayerIsPlaying(ctx context.Context, params *UpdatePlayerIsPlayingParams) (UpdatePlayerIsPlayingResponse, error) {
	if err := s.checkIfMemberAdmin(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdatePlayerIsPlayingResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerIsPlaying(ctx, &room.UpdatePlayerIsPlayingParams{
		IsPlaying: params.IsPlaying,
		UpdatedAt: s.now(),
		RoomId:    params.RoomId,
	}); err != nil {
		return UpdatePlayerIsPlayingResponse{}, fmt.Errorf("failed to update player is playing: %w", err)
	}

	conns, err := s.getOtherConns(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return UpdatePlayerIsPlayingResponse{}, err
	}

	return UpdatePlayerIsPlayingResponse{Conns: conns}, nil
}

type UpdatePlayerTrackParams struct {
	TrackId  string
	SenderId string
	RoomId   string
}

type UpdatePlayerTrackResponse struct {
	Conns []*websocket.Conn
}

// UpdatePlayerTrack swaps the active track and resets the position to zero.
func (s service) UpdatePlayerTrack(ctx context.Context, params *UpdatePlayerTrackParams) (UpdatePlayerTrackResponse, error) {
	if err := s.checkIfMemberAdmin(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdatePlayerTrackResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerTrack(ctx, &room.UpdatePlayerTrackParams{
		TrackId:   params.TrackId,
		UpdatedAt: s.now(),
		RoomId:    params.RoomId,
	}); err != nil {
		return UpdatePlayerTrackResponse{}, fmt.Errorf("failed to update player track: %w", err)
	}

	conns, err := s.getOtherConns(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return UpdatePlayerTrackResponse{}, err
	}

	return UpdatePlayerTrackResponse{Conns: conns}, nil
}

type UpdatePlayerAutoplayParams struct {
	Autoplay bool
	SenderId string
	RoomId   string
}

type UpdatePlayerAutoplayResponse struct {
	Conns []*websocket.Conn
}

func (s service) UpdatePlayerAutoplay(ctx context.Context, params *UpdatePlayerAutoplayParams) (UpdatePlayerAutoplayResponse, error) {
	if err := s.checkIfMemberAdmin(ctx, params.RoomId, params.SenderId); err != nil {
		return UpdatePlayerAutoplayResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerAutoplay(ctx, &room.UpdatePlayerAutoplayParams{
		Autoplay:  params.Autoplay,
		UpdatedAt: s.now(),
		RoomId:    params.RoomId,
	}); err != nil {
		return UpdatePlayerAutoplayResponse{}, fmt.Errorf("failed to update player autoplay: %w", err)
	}

	conns, err := s.getOtherConns(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return UpdatePlayerAutoplayResponse{}, err
	}

	return UpdatePlayerAutoplayResponse{Conns: conns}, nil
}

type SyncPlayerStateParams struct {
	Time      float64
	IsPlaying bool
	TrackId   string
	Autoplay  bool
	SenderId  string
	RoomId    string
}

type SyncPlayerStateResponse struct {
	Conns []*websocket.Conn
}

// SyncPlayerState applies the admin's periodic heartbeat. The whole state is
// replaced and stamped with the coordinator's receipt time.
func (s service) SyncPlayerState(ctx context.Context, params *SyncPlayerStateParams) (SyncPlayerStateResponse, error) {
	if err := s.checkIfMemberAdmin(ctx, params.RoomId, params.SenderId); err != nil {
		return SyncPlayerStateResponse{}, err
	}

	if err := s.roomRepo.UpdatePlayerState(ctx, &room.UpdatePlayerStateParams{
		TrackId:     params.TrackId,
		CurrentTime: params.Time,
		IsPlaying:   params.IsPlaying,
		Autoplay:    params.Autoplay,
		UpdatedAt:   s.now(),
		RoomId:      params.RoomId,
	}); err != nil {
		return SyncPlayerStateResponse{}, fmt.Errorf("failed to update player state: %w", err)
	}

	conns, err := s.getOtherConns(ctx, params.RoomId, params.SenderId)
	if err != nil {
		return SyncPlayerStateResponse{}, err
	}

	return SyncPlayerStateResponse{Conns: conns}, nil
}
