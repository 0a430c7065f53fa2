package ws

import (
	"context"

	sonic "github.com/bytedance/sonic"
	"github.com/coder/websocket"

	"github.com/DoyleJ11/bot-draft-backend/internal/engine"
)

// Conn adapts a websocket connection to a broadcast subscriber.
type Conn struct {
	ws *websocket.Conn
}

func NewConn(c *websocket.Conn) *Conn { return &Conn{ws: c} }

func (c *Conn) Send(ctx context.Context, ev engine.Event) error {
	return c.write(ctx, ev)
}

// Close ends the connection with a try-again-later status; the client should
// reconnect and will receive a fresh snapshot.
func (c *Conn) Close(reason string) error {
	return c.ws.Close(websocket.StatusTryAgainLater, reason)
}

func (c *Conn) write(ctx context.Context, v any) error {
	payload, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return c.ws.Write(ctx, websocket.MessageText, payload)
}
