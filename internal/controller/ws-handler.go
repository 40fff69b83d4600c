package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/internal/service/room"
	"github.com/syncroom/server/pkg/wsrouter"
)

// session is the per-connection binding built up by create/join messages.
// It is only touched from the connection's own read loop.
type session struct {
	memberId string
	roomId   string
}

func (c *controller) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}
	c.writeLocks.LoadOrStore(conn, &connLock{})

	sess := &session{}
	defer func() {
		c.writeLocks.Delete(conn)
		if sess.memberId != "" {
			if _, err := c.roomService.DisconnectMember(r.Context(), &room.DisconnectMemberParams{
				MemberId: sess.memberId,
				RoomId:   sess.roomId,
			}); err != nil {
				c.logger.InfoContext(r.Context(), "failed to disconnect member", "error", err)
			}
		}
	}()

	mux := wsrouter.New(protocol.Decode, func(ctx context.Context, conn *websocket.Conn, msg protocol.Message) error {
		return c.handleMessage(ctx, conn, sess, msg)
	})
	mux.Use(c.loggerWSMw())
	mux.OnError(func(ctx context.Context, err error) {
		c.logger.InfoContext(ctx, "websocket message dropped", "error", err)
	})

	if err := mux.ServeConn(r.Context(), conn); err != nil {
		c.logger.DebugContext(r.Context(), "websocket closed", "error", err)
	}
}

// handleMessage dispatches over the closed message set. Admin-only events
// from non-admins resolve to ErrPermissionDenied and are dropped without a
// reply; the UI never lets a follower emit them, so this is a backstop, not
// a user-facing failure.
func (c *controller) handleMessage(ctx context.Context, conn *websocket.Conn, sess *session, msg protocol.Message) error {
	if errs, ok := c.validate.Validate(msg); !ok {
		c.logger.InfoContext(ctx, "invalid message", "errors", errs)
		return nil
	}

	switch m := msg.(type) {
	case *protocol.CreateRoom:
		return c.handleCreateRoom(ctx, conn, sess, m)
	case *protocol.JoinRoom:
		return c.handleJoinRoom(ctx, conn, sess, m)
	case *protocol.LeaveRoom:
		return c.handleLeaveRoom(ctx, sess)
	case *protocol.SyncRequest:
		return c.handleSyncRequest(ctx, conn, m)
	case *protocol.Seek:
		resp, err := c.roomService.UpdatePlayerPosition(ctx, &room.UpdatePlayerPositionParams{
			Time:     m.Time,
			SenderId: sess.memberId,
			RoomId:   m.RoomId,
		})
		if err != nil {
			return c.dropDenied(ctx, err)
		}
		return c.broadcast(ctx, resp.Conns, m)
	case *protocol.PlayPause:
		resp, err := c.roomService.UpdatePlayerIsPlaying(ctx, &room.UpdatePlayerIsPlayingParams{
			IsPlaying: m.IsPlaying,
			SenderId:  sess.memberId,
			RoomId:    m.RoomId,
		})
		if err != nil {
			return c.dropDenied(ctx, err)
		}
		return c.broadcast(ctx, resp.Conns, m)
	case *protocol.VideoChange:
		resp, err := c.roomService.UpdatePlayerTrack(ctx, &room.UpdatePlayerTrackParams{
			TrackId:  m.TrackId,
			SenderId: sess.memberId,
			RoomId:   m.RoomId,
		})
		if err != nil {
			return c.dropDenied(ctx, err)
		}
		return c.broadcast(ctx, resp.Conns, m)
	case *protocol.AutoplayChange:
		resp, err := c.roomService.UpdatePlayerAutoplay(ctx, &room.UpdatePlayerAutoplayParams{
			Autoplay: m.Autoplay,
			SenderId: sess.memberId,
			RoomId:   m.RoomId,
		})
		if err != nil {
			return c.dropDenied(ctx, err)
		}
		return c.broadcast(ctx, resp.Conns, m)
	case *protocol.SyncResponse:
		resp, err := c.roomService.SyncPlayerState(ctx, &room.SyncPlayerStateParams{
			Time:      m.Time,
			IsPlaying: m.IsPlaying,
			TrackId:   m.TrackId,
			Autoplay:  m.Autoplay,
			SenderId:  sess.memberId,
			RoomId:    m.RoomId,
		})
		if err != nil {
			return c.dropDenied(ctx, err)
		}
		return c.broadcast(ctx, resp.Conns, m)
	case *protocol.Ping:
		if sess.memberId != "" {
			if err := c.roomService.Ping(ctx, sess.memberId); err != nil {
				c.logger.InfoContext(ctx, "failed to record ping", "error", err)
			}
		}
		return c.writeMessage(ctx, conn, &protocol.Pong{Time: m.Time})
	case *protocol.Pong, *protocol.RoomState, *protocol.Joined, *protocol.Error:
		// server-to-client only, a client echoing them back is ignored
		return nil
	default:
		c.logger.InfoContext(ctx, "unhandled message type", "type", msg.MessageType())
		return nil
	}
}

func (c *controller) handleCreateRoom(ctx context.Context, conn *websocket.Conn, sess *session, m *protocol.CreateRoom) error {
	resp, err := c.roomService.CreateRoom(ctx, &room.CreateRoomParams{
		Conn:    conn,
		RoomId:  m.RoomId,
		TrackId: m.TrackId,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to create room", "error", err)
		return c.writeMessage(ctx, conn, denialMessage(err))
	}

	sess.memberId = resp.MemberId
	sess.roomId = resp.RoomId

	if err := c.writeMessage(ctx, conn, &protocol.Joined{RoomId: resp.RoomId, IsAdmin: resp.IsAdmin}); err != nil {
		return err
	}

	return c.writeMessage(ctx, conn, stateMessage(resp.RoomId, resp.State))
}

func (c *controller) handleJoinRoom(ctx context.Context, conn *websocket.Conn, sess *session, m *protocol.JoinRoom) error {
	resp, err := c.roomService.JoinRoom(ctx, &room.JoinRoomParams{
		Conn:       conn,
		RoomId:     m.RoomId,
		WantsAdmin: m.IsAdmin,
	})
	if err != nil {
		c.logger.InfoContext(ctx, "failed to join room", "error", err)
		return c.writeMessage(ctx, conn, denialMessage(err))
	}

	sess.memberId = resp.MemberId
	sess.roomId = m.RoomId

	if err := c.writeMessage(ctx, conn, &protocol.Joined{RoomId: m.RoomId, IsAdmin: resp.IsAdmin}); err != nil {
		return err
	}

	// late-join recovery: the full snapshot goes out before any heartbeat,
	// even when no track is set yet
	return c.writeMessage(ctx, conn, stateMessage(m.RoomId, resp.State))
}

func (c *controller) handleLeaveRoom(ctx context.Context, sess *session) error {
	if sess.memberId == "" {
		return nil
	}

	// the session binding is authoritative, a payload naming another room
	// must not detach the member from a room it never joined
	if _, err := c.roomService.DisconnectMember(ctx, &room.DisconnectMemberParams{
		MemberId: sess.memberId,
		RoomId:   sess.roomId,
	}); err != nil {
		c.logger.InfoContext(ctx, "failed to disconnect member", "error", err)
		return nil
	}

	sess.memberId = ""
	sess.roomId = ""

	return nil
}

func (c *controller) handleSyncRequest(ctx context.Context, conn *websocket.Conn, m *protocol.SyncRequest) error {
	state, err := c.roomService.GetRoomState(ctx, m.RoomId)
	if err != nil {
		c.logger.InfoContext(ctx, "failed to get room state", "error", err)
		return nil
	}

	return c.writeMessage(ctx, conn, stateMessage(m.RoomId, state))
}

func stateMessage(roomId string, state room.State) *protocol.RoomState {
	return &protocol.RoomState{
		RoomId:      roomId,
		TrackId:     state.TrackId,
		CurrentTime: state.CurrentTime,
		IsPlaying:   state.IsPlaying,
		Autoplay:    state.Autoplay,
	}
}

// denialMessage is the reply for a failed create/join. The client is
// actively waiting on these, so unlike admin-event drops the denial must
// reach it.
func denialMessage(err error) *protocol.Error {
	if errors.Is(err, room.ErrRoomFull) {
		return &protocol.Error{Message: "Room is full."}
	}

	return &protocol.Error{Message: "Failed to join room."}
}

func (c *controller) dropDenied(ctx context.Context, err error) error {
	if errors.Is(err, room.ErrPermissionDenied) {
		c.logger.DebugContext(ctx, "dropped non-admin mutation")
		return nil
	}

	c.logger.InfoContext(ctx, "failed to apply admin event", "error", err)
	return nil
}
