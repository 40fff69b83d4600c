// Package room implements the room session coordinator: it owns membership,
// the authoritative playback state of every room and the fan-out of
// admin-originated events to the other members.
package room

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/repository/room"
	"github.com/syncroom/server/pkg/randstr"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrMemberNotFound   = errors.New("member not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
)

type iRoomRepo interface {
	// member
	SetMember(context.Context, *room.SetMemberParams) error
	GetMember(ctx context.Context, memberId string) (room.Member, error)
	RemoveMember(context.Context, *room.RemoveMemberParams) error
	GetMemberIds(ctx context.Context, roomId string) ([]string, error)
	GetMemberRoomId(ctx context.Context, memberId string) (string, error)
	UpdateMemberLastSeen(ctx context.Context, memberId string, lastSeen int64) error
	GrantAdmin(context.Context, *room.GrantAdminParams) (bool, error)
	GetAdminId(ctx context.Context, roomId string) (string, error)
	RemoveAdmin(ctx context.Context, roomId, memberId string) error
	RemoveRoom(ctx context.Context, roomId string) error
	// player
	SetPlayer(context.Context, *room.SetPlayerParams) error
	GetPlayer(ctx context.Context, roomId string) (room.Player, error)
	IsPlayerExists(ctx context.Context, roomId string) (bool, error)
	UpdatePlayerPosition(context.Context, *room.UpdatePlayerPositionParams) error
	UpdatePlayerIsPlaying(context.Context, *room.UpdatePlayerIsPlayingParams) error
	UpdatePlayerTrack(context.Context, *room.UpdatePlayerTrackParams) error
	UpdatePlayerAutoplay(context.Context, *room.UpdatePlayerAutoplayParams) error
	UpdatePlayerState(context.Context, *room.UpdatePlayerStateParams) error
}

type iConnRepo interface {
	Add(conn *websocket.Conn, memberId string) error
	RemoveByMemberId(memberId string) error
	GetConn(memberId string) (*websocket.Conn, error)
	GetMemberId(conn *websocket.Conn) (string, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type service struct {
	roomRepo     iRoomRepo
	connRepo     iConnRepo
	generator    iGenerator
	membersLimit int
	logger       *slog.Logger
}

func NewService(roomRepo iRoomRepo, connRepo iConnRepo, membersLimit int, logger *slog.Logger) *service {
	s := service{
		roomRepo:     roomRepo,
		connRepo:     connRepo,
		membersLimit: membersLimit,
		logger:       logger,
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

func (s service) now() int64 {
	return time.Now().UnixMilli()
}
