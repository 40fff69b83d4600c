package controller

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/repository/connection/inmemory"
	roomRedis "github.com/syncroom/server/internal/repository/room/redis"
	"github.com/syncroom/server/internal/service/room"
)

func newTestServer(t *testing.T, membersLimit int) *httptest.Server {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rc := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	roomRepo := roomRedis.NewRepo(rc, time.Hour, slog.Default())
	connRepo := inmemory.NewRepo()
	roomService := room.NewService(roomRepo, connRepo, membersLimit, slog.Default())

	srv := httptest.NewServer(NewController(roomService, slog.Default()).GetMux())
	t.Cleanup(srv.Close)

	return srv
}

func dialTestServer(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/websocket"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, msg protocol.Message) {
	t.Helper()

	data, err := protocol.Encode(msg)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, data))
}

func readMessage(t *testing.T, conn *websocket.Conn) protocol.Message {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	msg, err := protocol.Decode(data)
	require.NoError(t, err)

	return msg
}

func TestCreateRoomOverWebsocket(t *testing.T) {
	srv := newTestServer(t, 9)
	admin := dialTestServer(t, srv)

	sendMessage(t, admin, &protocol.CreateRoom{RoomId: "r1", TrackId: "dQw4w9WgXcQ"})

	joined, ok := readMessage(t, admin).(*protocol.Joined)
	require.True(t, ok)
	assert.Equal(t, "r1", joined.RoomId)
	assert.True(t, joined.IsAdmin)

	state, ok := readMessage(t, admin).(*protocol.RoomState)
	require.True(t, ok)
	assert.Equal(t, "dQw4w9WgXcQ", state.TrackId)
}

func TestJoinFullRoomIsDenied(t *testing.T) {
	srv := newTestServer(t, 1)

	admin := dialTestServer(t, srv)
	sendMessage(t, admin, &protocol.CreateRoom{RoomId: "r1", TrackId: "dQw4w9WgXcQ"})
	readMessage(t, admin) // joined
	readMessage(t, admin) // room_state

	late := dialTestServer(t, srv)
	sendMessage(t, late, &protocol.JoinRoom{RoomId: "r1"})

	denial, ok := readMessage(t, late).(*protocol.Error)
	require.True(t, ok, "a waiting client must get a denial, not silence")
	assert.Equal(t, "Room is full.", denial.Message)
}

func TestLeaveRoomIgnoresPayloadRoomId(t *testing.T) {
	srv := newTestServer(t, 2)

	admin := dialTestServer(t, srv)
	sendMessage(t, admin, &protocol.CreateRoom{RoomId: "r1", TrackId: "dQw4w9WgXcQ"})
	readMessage(t, admin) // joined
	readMessage(t, admin) // room_state

	follower := dialTestServer(t, srv)
	sendMessage(t, follower, &protocol.JoinRoom{RoomId: "r1"})
	readMessage(t, follower) // joined
	readMessage(t, follower) // room_state

	// a tampered leave naming another room must still release the member's
	// slot in the room it actually joined
	sendMessage(t, follower, &protocol.LeaveRoom{RoomId: "somewhere-else"})

	// same-connection ordering: once this reply arrives the leave has been
	// processed
	sendMessage(t, follower, &protocol.SyncRequest{RoomId: "r1"})
	_, ok := readMessage(t, follower).(*protocol.RoomState)
	require.True(t, ok)

	third := dialTestServer(t, srv)
	sendMessage(t, third, &protocol.JoinRoom{RoomId: "r1"})

	joined, ok := readMessage(t, third).(*protocol.Joined)
	require.True(t, ok, "the freed slot must be joinable, not held by a ghost")
	assert.Equal(t, "r1", joined.RoomId)
}
