// Package wsrouter runs the per-connection read loop of a websocket session
// and hands each decoded message to a handler. Decoding is pluggable so the
// message set stays a closed type owned by the caller.
package wsrouter

import (
	"context"

	"github.com/gorilla/websocket"
)

type Decoder[T any] func(data []byte) (T, error)

type HandlerFunc[T any] func(ctx context.Context, conn *websocket.Conn, msg T) error

type Middleware[T any] func(next HandlerFunc[T]) HandlerFunc[T]

type Router[T any] struct {
	decode     Decoder[T]
	handler    HandlerFunc[T]
	middleware []Middleware[T]
	onError    func(ctx context.Context, err error)
}

func New[T any](decode Decoder[T], handler HandlerFunc[T]) *Router[T] {
	return &Router[T]{
		decode:  decode,
		handler: handler,
	}
}

func (r *Router[T]) Use(mw Middleware[T]) {
	r.middleware = append(r.middleware, mw)
}

// OnError registers a callback for decode failures. The read loop never
// terminates on a malformed message, only on a broken connection.
func (r *Router[T]) OnError(fn func(ctx context.Context, err error)) {
	r.onError = fn
}

// ServeConn reads messages until the connection closes or ctx is done.
// Messages from one connection are handled in the order they arrive.
func (r *Router[T]) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()

	handler := r.handler
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](handler)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		msg, err := r.decode(data)
		if err != nil {
			if r.onError != nil {
				r.onError(ctx, err)
			}
			continue
		}

		if err := handler(ctx, conn, msg); err != nil {
			if r.onError != nil {
				r.onError(ctx, err)
			}
		}
	}
}
