package controller

import (
	"context"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
)

type connLock struct {
	mu sync.Mutex
}

func (c *controller) writeMessage(ctx context.Context, conn *websocket.Conn, msg protocol.Message) error {
	data, err := protocol.Encode(msg)
	if err != nil {
		return err
	}

	if l, ok := c.writeLocks.Load(conn); ok {
		lock := l.(*connLock)
		lock.mu.Lock()
		defer lock.mu.Unlock()
	}

	return conn.WriteMessage(websocket.TextMessage, data)
}

// broadcast fans a message out in the order the coordinator received it.
// A failed write only skips that member; its connection cleanup happens in
// its own read loop.
func (c *controller) broadcast(ctx context.Context, conns []*websocket.Conn, msg protocol.Message) error {
	for _, conn := range conns {
		if err := c.writeMessage(ctx, conn, msg); err != nil {
			c.logger.InfoContext(ctx, "failed to write to conn", "error", err)
		}
	}

	return nil
}
