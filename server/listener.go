package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/tsarna/graphql-transport-ws/gqlws"
	"go.uber.org/zap"
)

// Listener accepts HTTP requests, upgrades them to WebSocket connections
// speaking the graphql-transport-ws subprotocol, and runs each one as a
// gqlws.Connection. Grounded almost line-for-line on the teacher's
// websockets/server.Listener (connection tracking map + shutdown
// channel + poll-until-drained Shutdown), adapted from EventBus wiring
// to gqlws.Connection wiring.
type Listener struct {
	logger *zap.Logger
	config *ListenerConfig

	connections  map[*gqlws.Connection]struct{}
	connMutex    sync.RWMutex
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

func newListener(config *ListenerConfig) *Listener {
	return &Listener{
		logger:      config.logger,
		config:      config,
		connections: make(map[*gqlws.Connection]struct{}),
		shutdown:    make(chan struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket connection and runs it to
// completion. It can be mounted directly on any net/http-compatible
// router.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:    []string{gqlws.Subprotocol},
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		l.logger.Error("failed to accept WebSocket connection",
			zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		return
	}

	if gqlws.NegotiateSubprotocol([]string{conn.Subprotocol()}) == gqlws.NoMatch {
		conn.Close(websocket.StatusProtocolError, "subprotocol required: "+gqlws.Subprotocol)
		return
	}

	select {
	case <-l.shutdown:
		conn.Close(websocket.StatusServiceRestart, "server shutting down")
		return
	default:
	}

	connection := gqlws.NewConnection(newWsSocket(conn), l.config.gqlwsConfig, l.logger)

	l.connMutex.Lock()
	l.connections[connection] = struct{}{}
	l.connMutex.Unlock()

	connection.Serve(r.Context())

	l.connMutex.Lock()
	delete(l.connections, connection)
	l.connMutex.Unlock()
}

// Shutdown stops accepting new connections, closes every active
// connection with CloseNormal, and blocks until they've all drained or
// ctx is done.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.shutdownOnce.Do(func() {
		close(l.shutdown)

		l.connMutex.RLock()
		conns := make([]*gqlws.Connection, 0, len(l.connections))
		for c := range l.connections {
			conns = append(conns, c)
		}
		l.connMutex.RUnlock()

		for _, c := range conns {
			go c.Close(gqlws.CloseNormal, "server shutting down")
		}
	})

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.connMutex.RLock()
			remaining := len(l.connections)
			l.connMutex.RUnlock()
			if remaining > 0 {
				l.logger.Warn("shutdown timeout reached with active connections",
					zap.Int("remaining_connections", remaining))
			}
			return ctx.Err()
		case <-ticker.C:
			l.connMutex.RLock()
			remaining := len(l.connections)
			l.connMutex.RUnlock()
			if remaining == 0 {
				return nil
			}
		}
	}
}

// ConnectionCount returns the number of currently active connections.
func (l *Listener) ConnectionCount() int {
	l.connMutex.RLock()
	defer l.connMutex.RUnlock()
	return len(l.connections)
}
