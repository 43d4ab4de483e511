package gqlws

import "context"

// Socket is the transport Connection needs: something that can read and
// write whole text frames and manage a WebSocket close handshake. It
// deliberately mirrors github.com/coder/websocket's *Conn shape (Read,
// Write, Ping, Close, CloseNow) rather than inventing a push/callback
// style, so the server package's adapter (§H′) is a thin wrapper rather
// than a reimplementation.
//
// Receive and Send are called only from Connection's own reader and
// writer goroutines respectively; an implementation does not need to make
// them safe to call concurrently with themselves, only with each other
// and with Ping/Close.
type Socket interface {
	// Protocol returns the negotiated subprotocol, for logging.
	Protocol() string

	// Receive blocks for the next text frame, or returns an error when the
	// socket is closed (by either side) or ctx is done.
	Receive(ctx context.Context) ([]byte, error)

	// Send writes one text frame.
	Send(ctx context.Context, data []byte) error

	// Ping sends a WebSocket ping and blocks until the matching pong
	// arrives or ctx's deadline passes, whichever comes first. A deadline
	// context IS the pong timer (§4.F): the caller never needs a separate
	// timeout goroutine.
	Ping(ctx context.Context) error

	// Close sends a close frame with the given code and reason and waits
	// briefly for the client's acknowledging close frame.
	Close(code CloseCode, reason string) error

	// TerminateNow closes the underlying network connection immediately,
	// without attempting a close handshake. Used for abrupt termination
	// (pong timeout, internal panic) where a graceful close isn't
	// appropriate or safe.
	TerminateNow() error

	// CloseStatus inspects an error returned from Receive and reports the
	// close code a close frame from the far end carried, mirroring
	// websocket.CloseStatus. ok is false when err isn't a close-frame
	// error (a network failure, a cancelled context) — Connection falls
	// back to CloseAbnormal in that case.
	CloseStatus(err error) (code CloseCode, ok bool)
}
