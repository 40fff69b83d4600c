package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/syncroom/server/internal/protocol"
	"github.com/syncroom/server/pkg/ctxlogger"
	"github.com/syncroom/server/pkg/wsrouter"
)

func (c *controller) loggerWSMw() wsrouter.Middleware[protocol.Message] {
	return func(next wsrouter.HandlerFunc[protocol.Message]) wsrouter.HandlerFunc[protocol.Message] {
		return func(ctx context.Context, conn *websocket.Conn, msg protocol.Message) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", string(msg.MessageType())))
			c.logger.DebugContext(ctx, "websocket message received")

			start := time.Now()
			err := next(ctx, conn, msg)

			c.logger.DebugContext(ctx, "websocket message handled",
				"processing_time_us", time.Since(start).Microseconds(),
			)

			return err
		}
	}
}
