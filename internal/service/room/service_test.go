package room

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncroom/server/internal/repository/connection/inmemory"
	roomRedis "github.com/syncroom/server/internal/repository/room/redis"
)

func newTestService(t *testing.T, membersLimit int) *service {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	roomRepo := roomRedis.NewRepo(rc, time.Hour, slog.Default())
	connRepo := inmemory.NewRepo()

	return NewService(roomRepo, connRepo, membersLimit, slog.Default())
}

func TestCreateAndJoinRoom(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)
	service := newTestService(t, 9)
	ctx := context.Background()

	// admin creates the room with a seeded track
	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, createResp.MemberId, "member id is empty")
	assert.Equal(t, "room1", createResp.RoomId, "room id is not equal")
	assert.True(t, createResp.IsAdmin, "creator must be admin")
	assert.Equal(t, "dQw4w9WgXcQ", createResp.State.TrackId, "track id is not equal")
	assert.False(t, createResp.State.IsPlaying, "playback must start paused")

	// second member requests admin but the slot is taken
	joinResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		Conn:       &websocket.Conn{},
		RoomId:     "room1",
		WantsAdmin: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, joinResp.MemberId)
	assert.False(t, joinResp.IsAdmin, "admin slot must stay with the first claimer")
	assert.Equal(t, "dQw4w9WgXcQ", joinResp.State.TrackId, "late joiner must receive the seeded state")
}

func TestJoinUnseenRoom(t *testing.T) {
	service := newTestService(t, 9)
	ctx := context.Background()

	joinResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		Conn:   &websocket.Conn{},
		RoomId: "fresh",
	})
	require.NoError(t, err)
	assert.False(t, joinResp.IsAdmin)
	assert.Empty(t, joinResp.State.TrackId, "unseen room must get an empty state")

	// the empty state is still queryable, the room exists
	state, err := service.GetRoomState(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, state.IsPlaying)
}

func TestRoomFull(t *testing.T) {
	service := newTestService(t, 1)
	ctx := context.Background()

	_, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "tiny",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		Conn:   &websocket.Conn{},
		RoomId: "tiny",
	})
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestAdminExclusivity(t *testing.T) {
	service := newTestService(t, 9)
	ctx := context.Background()

	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	joinResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		Conn:   &websocket.Conn{},
		RoomId: "room1",
	})
	require.NoError(t, err)

	// follower mutations are rejected and leave the state untouched
	_, err = service.UpdatePlayerIsPlaying(ctx, &UpdatePlayerIsPlayingParams{
		IsPlaying: true,
		SenderId:  joinResp.MemberId,
		RoomId:    "room1",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	_, err = service.UpdatePlayerPosition(ctx, &UpdatePlayerPositionParams{
		Time:     42,
		SenderId: joinResp.MemberId,
		RoomId:   "room1",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	state, err := service.GetRoomState(ctx, "room1")
	require.NoError(t, err)
	assert.False(t, state.IsPlaying, "follower must not change playback state")
	assert.Equal(t, 0.0, state.CurrentTime, "follower must not change position")

	// the admin's mutations go through and fan out to the other member
	playResp, err := service.UpdatePlayerIsPlaying(ctx, &UpdatePlayerIsPlayingParams{
		IsPlaying: true,
		SenderId:  createResp.MemberId,
		RoomId:    "room1",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, len(playResp.Conns), "event must fan out to the follower only")

	state, err = service.GetRoomState(ctx, "room1")
	require.NoError(t, err)
	assert.True(t, state.IsPlaying)
}

func TestTrackChangeResetsPosition(t *testing.T) {
	service := newTestService(t, 9)
	ctx := context.Background()

	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	_, err = service.UpdatePlayerPosition(ctx, &UpdatePlayerPositionParams{
		Time:     120.5,
		SenderId: createResp.MemberId,
		RoomId:   "room1",
	})
	require.NoError(t, err)

	_, err = service.UpdatePlayerTrack(ctx, &UpdatePlayerTrackParams{
		TrackId:  "9bZkp7q19f0",
		SenderId: createResp.MemberId,
		RoomId:   "room1",
	})
	require.NoError(t, err)

	state, err := service.GetRoomState(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, "9bZkp7q19f0", state.TrackId)
	assert.Equal(t, 0.0, state.CurrentTime, "track change must reset the position")
}

func TestSyncPlayerState(t *testing.T) {
	service := newTestService(t, 9)
	ctx := context.Background()

	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	_, err = service.SyncPlayerState(ctx, &SyncPlayerStateParams{
		Time:      33.3,
		IsPlaying: true,
		TrackId:   "dQw4w9WgXcQ",
		Autoplay:  true,
		SenderId:  createResp.MemberId,
		RoomId:    "room1",
	})
	require.NoError(t, err)

	state, err := service.GetRoomState(ctx, "room1")
	require.NoError(t, err)
	assert.Equal(t, 33.3, state.CurrentTime)
	assert.True(t, state.IsPlaying)
	assert.True(t, state.Autoplay)
	assert.NotZero(t, state.UpdatedAt, "heartbeat must be stamped with receipt time")
}

func TestAdminLeaveAndReclaim(t *testing.T) {
	service := newTestService(t, 9)
	ctx := context.Background()

	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	joinResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		Conn:   &websocket.Conn{},
		RoomId: "room1",
	})
	require.NoError(t, err)

	// admin leaves, the room survives adminless
	discResp, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		MemberId: createResp.MemberId,
		RoomId:   "room1",
	})
	require.NoError(t, err)
	assert.False(t, discResp.IsRoomDeleted)

	_, err = service.UpdatePlayerIsPlaying(ctx, &UpdatePlayerIsPlayingParams{
		IsPlaying: true,
		SenderId:  joinResp.MemberId,
		RoomId:    "room1",
	})
	assert.ErrorIs(t, err, ErrPermissionDenied, "remaining follower is not promoted")

	// a fresh joiner claiming admin gets the released slot
	reclaimResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		Conn:       &websocket.Conn{},
		RoomId:     "room1",
		WantsAdmin: true,
	})
	require.NoError(t, err)
	assert.True(t, reclaimResp.IsAdmin, "released admin slot must be claimable")
}

func TestFailedJoinLeavesNoGhostMember(t *testing.T) {
	service := newTestService(t, 3)
	ctx := context.Background()

	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	followerConn := &websocket.Conn{}
	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		Conn:   followerConn,
		RoomId: "room1",
	})
	require.NoError(t, err)

	_, err = service.DisconnectMember(ctx, &DisconnectMemberParams{
		MemberId: createResp.MemberId,
		RoomId:   "room1",
	})
	require.NoError(t, err)

	// the follower's connection is already bound, so this join fails
	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		Conn:       followerConn,
		RoomId:     "room1",
		WantsAdmin: true,
	})
	require.Error(t, err)

	// the failed join must not have squatted on the released admin slot
	reclaimResp, err := service.JoinRoom(ctx, &JoinRoomParams{
		Conn:       &websocket.Conn{},
		RoomId:     "room1",
		WantsAdmin: true,
	})
	require.NoError(t, err)
	assert.True(t, reclaimResp.IsAdmin, "admin slot must go to the next real claimer")

	// and must not count against the members limit: 2 real members, room for 1
	_, err = service.JoinRoom(ctx, &JoinRoomParams{
		Conn:   &websocket.Conn{},
		RoomId: "room1",
	})
	require.NoError(t, err, "a failed join must not consume a member slot")
}

func TestLastMemberLeaveDeletesRoom(t *testing.T) {
	service := newTestService(t, 9)
	ctx := context.Background()

	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	discResp, err := service.DisconnectMember(ctx, &DisconnectMemberParams{
		MemberId: createResp.MemberId,
		RoomId:   "room1",
	})
	require.NoError(t, err)
	assert.True(t, discResp.IsRoomDeleted, "empty room must be garbage collected")

	_, err = service.GetRoomState(ctx, "room1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestPing(t *testing.T) {
	service := newTestService(t, 9)
	ctx := context.Background()

	createResp, err := service.CreateRoom(ctx, &CreateRoomParams{
		Conn:    &websocket.Conn{},
		RoomId:  "room1",
		TrackId: "dQw4w9WgXcQ",
	})
	require.NoError(t, err)

	err = service.Ping(ctx, createResp.MemberId)
	require.NoError(t, err)
}
