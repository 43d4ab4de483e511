package server

import (
	"context"

	"github.com/coder/websocket"
	"github.com/tsarna/graphql-transport-ws/gqlws"
)

// wsSocket adapts *websocket.Conn to gqlws.Socket. Every method is a
// direct pass-through; the pull-based shape of gqlws.Socket was chosen
// specifically to mirror this type one-to-one (see gqlws/socket.go).
type wsSocket struct {
	conn *websocket.Conn
}

func newWsSocket(conn *websocket.Conn) *wsSocket {
	return &wsSocket{conn: conn}
}

func (s *wsSocket) Protocol() string {
	return s.conn.Subprotocol()
}

func (s *wsSocket) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := s.conn.Read(ctx)
	return data, err
}

func (s *wsSocket) Send(ctx context.Context, data []byte) error {
	return s.conn.Write(ctx, websocket.MessageText, data)
}

func (s *wsSocket) Ping(ctx context.Context) error {
	return s.conn.Ping(ctx)
}

func (s *wsSocket) Close(code gqlws.CloseCode, reason string) error {
	return s.conn.Close(websocket.StatusCode(code), reason)
}

func (s *wsSocket) TerminateNow() error {
	return s.conn.CloseNow()
}

func (s *wsSocket) CloseStatus(err error) (gqlws.CloseCode, bool) {
	status := websocket.CloseStatus(err)
	if status == -1 {
		return 0, false
	}
	return gqlws.CloseCode(status), true
}
