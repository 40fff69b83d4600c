package controller

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/pkg/validator"
)

type iRoomService interface {
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	JoinRoom(context.Context, *room.JoinRoomParams) (room.JoinRoomResponse, error)
	DisconnectMember(context.Context, *room.DisconnectMemberParams) (room.DisconnectMemberResponse, error)
	GetRoomState(ctx context.Context, roomId string) (room.State, error)
	UpdatePlayerPosition(context.Context, *room.UpdatePlayerPositionParams) (room.UpdatePlayerPositionResponse, error)
	UpdatePlayerIsPlaying(context.Context, *room.UpdatePlayerIsPlayingParams) (room.UpdatePlayerIsPlayingResponse, error)
	UpdatePlayerTrack(context.Context, *room.UpdatePlayerTrackParams) (room.UpdatePlayerTrackResponse, error)
	UpdatePlayerAutoplay(context.Context, *room.UpdatePlayerAutoplayParams) (room.UpdatePlayerAutoplayResponse, error)
	SyncPlayerState(context.Context, *room.SyncPlayerStateParams) (room.SyncPlayerStateResponse, error)
	Ping(ctx context.Context, memberId string) error
}

type controller struct {
	roomService iRoomService
	upgrader    websocket.Upgrader
	validate    *validator.Validator
	logger      *slog.Logger

	// serializes writes per connection, multiple read loops may fan out
	// to the same conn
	writeLocks sync.Map
}

func NewController(roomService iRoomService, logger *slog.Logger) *controller {
	return &controller{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		roomService: roomService,
		validate:    validator.NewValidator(),
		logger:      logger,
	}
}
