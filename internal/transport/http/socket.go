package http

import (
	"context"

	"github.com/coder/websocket"

	"github.com/roomchat/roomchat-server/internal/core"
)

// wsSocket adapts a websocket connection to the core.Socket interface.
type wsSocket struct {
	conn *websocket.Conn
}

func newWSSocket(conn *websocket.Conn) *wsSocket {
	return &wsSocket{conn: conn}
}

func (s *wsSocket) ReadFrame(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	return data, err
}

func (s *wsSocket) WriteFrame(ctx context.Context, payload []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, payload)
}

func (s *wsSocket) Close(code core.CloseCode, reason string) error {
	return s.conn.Close(websocket.StatusCode(code), reason)
}
