package gqlws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSocket is an in-memory Socket used to drive Connection without any
// real networking, the way the teacher's own tests stub bus.Subscriber
// rather than standing up a real EventBus.
type fakeSocket struct {
	mu     sync.Mutex
	inbox  chan []byte
	sent   [][]byte
	closed bool
	code   CloseCode
	reason string

	pingErr error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{inbox: make(chan []byte, 32)}
}

func (s *fakeSocket) Protocol() string { return Subprotocol }

func (s *fakeSocket) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-s.inbox:
		if !ok {
			return nil, errors.New("socket closed")
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *fakeSocket) Send(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := append([]byte(nil), data...)
	s.sent = append(s.sent, cp)
	return nil
}

func (s *fakeSocket) Ping(ctx context.Context) error {
	return s.pingErr
}

func (s *fakeSocket) Close(code CloseCode, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.code = code
	s.reason = reason
	close(s.inbox)
	return nil
}

func (s *fakeSocket) TerminateNow() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if !s.inboxClosedLocked() {
		close(s.inbox)
	}
	return nil
}

// CloseStatus always reports "no close frame observed": fakeSocket never
// synthesizes one, so Connection falls back to CloseAbnormal the same way
// it would for a bare network error.
func (s *fakeSocket) CloseStatus(err error) (CloseCode, bool) {
	return 0, false
}

// inboxClosedLocked is a best-effort guard so tests calling both Close and
// TerminateNow (an abrupt-after-graceful scenario) don't double-close.
func (s *fakeSocket) inboxClosedLocked() bool {
	select {
	case _, ok := <-s.inbox:
		return !ok
	default:
		return false
	}
}

func (s *fakeSocket) push(msg string) {
	s.inbox <- []byte(msg)
}

func (s *fakeSocket) messages(t *testing.T) []Message {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, 0, len(s.sent))
	for _, raw := range s.sent {
		var m Message
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

func testLogger() *zap.Logger { return zap.NewNop() }

func TestConnection_HandshakeThenAck(t *testing.T) {
	sock := newFakeSocket()
	conn := NewConnection(sock, Config{}, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"connection_init"}`)
	sock.Close(CloseNormal, "test done")
	<-done

	msgs := sock.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, MessageTypeConnectionAck, msgs[0].Type)
}

func TestConnection_SecondInitClosesTooManyRequests(t *testing.T) {
	sock := newFakeSocket()
	conn := NewConnection(sock, Config{}, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"connection_init"}`)
	sock.push(`{"type":"connection_init"}`)
	<-done

	assert.Equal(t, CloseTooManyInitRequests, sock.code)
}

func TestConnection_OnConnectRejectsHandshake(t *testing.T) {
	sock := newFakeSocket()
	hooks := &Hooks{
		OnConnect: func(ctx context.Context, payload []byte) (json.RawMessage, *ErrorPayload, error) {
			return nil, &ErrorPayload{Message: "nope"}, nil
		},
	}
	conn := NewConnection(sock, Config{Hooks: hooks}, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"connection_init"}`)
	<-done

	assert.Equal(t, CloseUnauthorized, sock.code)
}

func TestConnection_SubscribeBeforeAckIsRejected(t *testing.T) {
	sock := newFakeSocket()
	conn := NewConnection(sock, Config{}, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"subscribe","id":"1","payload":{}}`)
	<-done

	assert.Equal(t, CloseUnauthorized, sock.code)
}

// countingProducer emits n payloads then completes normally.
type countingProducer struct {
	n       int
	started chan struct{}
	stopped chan struct{}
}

func (p *countingProducer) Start(ctx context.Context, emit Emit) (*ErrorPayload, error) {
	if p.started != nil {
		close(p.started)
	}
	for i := 0; i < p.n; i++ {
		if err := emit(ctx, json.RawMessage(`{"n":1}`)); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
	return nil, nil
}

func (p *countingProducer) Stop(ctx context.Context) error {
	if p.stopped != nil {
		close(p.stopped)
	}
	return nil
}

func TestConnection_SubscribeEmitsThenCompletes(t *testing.T) {
	sock := newFakeSocket()
	producer := &countingProducer{n: 3}
	cfg := Config{
		Factory: func(ctx context.Context, msg *Message) (Producer, error) {
			return producer, nil
		},
	}
	conn := NewConnection(sock, cfg, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"connection_init"}`)
	sock.push(`{"type":"subscribe","id":"op1","payload":{"query":"{x}"}}`)

	require.Eventually(t, func() bool {
		for _, m := range sock.messages(t) {
			if m.Type == MessageTypeComplete && m.Id == "op1" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	sock.Close(CloseNormal, "done")
	<-done

	var nextCount int
	for _, m := range sock.messages(t) {
		if m.Type == MessageTypeNext && m.Id == "op1" {
			nextCount++
		}
	}
	assert.Equal(t, 3, nextCount)
}

// TestConnection_DuplicateSubscribeIdRejected covers spec scenario 3: a
// second "subscribe" for an id still in use closes the whole connection
// with 4409, rather than merely erroring that one operation.
func TestConnection_DuplicateSubscribeIdRejected(t *testing.T) {
	sock := newFakeSocket()
	started := make(chan struct{})
	unblock := make(chan struct{})
	cfg := Config{
		Factory: func(ctx context.Context, msg *Message) (Producer, error) {
			return &blockingProducer{started: started, unblock: unblock}, nil
		},
	}
	conn := NewConnection(sock, cfg, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"connection_init"}`)
	sock.push(`{"type":"subscribe","id":"dup","payload":{}}`)
	<-started
	sock.push(`{"type":"subscribe","id":"dup","payload":{}}`)

	<-done

	sock.mu.Lock()
	closed, code, reason := sock.closed, sock.code, sock.reason
	sock.mu.Unlock()

	assert.True(t, closed)
	assert.Equal(t, CloseSubscriberAlreadyExists, code)
	assert.Equal(t, "Subscriber for dup already exists", reason)
}

// blockingProducer signals started then blocks until unblock is closed or
// ctx is cancelled, to simulate a still-running producer for the
// duplicate-id race test and the client-complete-cancels test.
type blockingProducer struct {
	started chan struct{}
	unblock chan struct{}

	startOnce sync.Once
}

func (p *blockingProducer) Start(ctx context.Context, emit Emit) (*ErrorPayload, error) {
	p.startOnce.Do(func() {
		if p.started != nil {
			close(p.started)
		}
	})
	select {
	case <-p.unblock:
	case <-ctx.Done():
	}
	return nil, nil
}

func (p *blockingProducer) Stop(ctx context.Context) error { return nil }

func TestConnection_ClientCompleteCancelsProducer(t *testing.T) {
	sock := newFakeSocket()
	stopped := make(chan struct{})
	producer := &blockingProducer{started: make(chan struct{}), unblock: make(chan struct{})}
	cfg := Config{
		Factory: func(ctx context.Context, msg *Message) (Producer, error) {
			return &stopSignalingProducer{blockingProducer: producer, stopped: stopped}, nil
		},
	}
	conn := NewConnection(sock, cfg, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"connection_init"}`)
	sock.push(`{"type":"subscribe","id":"op1","payload":{}}`)
	time.Sleep(20 * time.Millisecond)
	sock.push(`{"type":"complete","id":"op1"}`)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("producer Stop was not called after client complete")
	}

	sock.Close(CloseNormal, "done")
	<-done
}

type stopSignalingProducer struct {
	*blockingProducer
	stopped chan struct{}
}

func (p *stopSignalingProducer) Stop(ctx context.Context) error {
	close(p.stopped)
	return nil
}

func TestConnection_PingIsAnsweredWithPong(t *testing.T) {
	sock := newFakeSocket()
	conn := NewConnection(sock, Config{}, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`{"type":"ping","payload":{"hello":1}}`)

	require.Eventually(t, func() bool {
		for _, m := range sock.messages(t) {
			if m.Type == MessageTypePong {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	sock.Close(CloseNormal, "done")
	<-done
}

func TestConnection_MalformedFrameClosesBadRequest(t *testing.T) {
	sock := newFakeSocket()
	conn := NewConnection(sock, Config{}, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	sock.push(`not json at all`)
	<-done

	assert.Equal(t, CloseBadRequest, sock.code)
}

func TestConnection_KeepAliveTimeoutTerminates(t *testing.T) {
	sock := newFakeSocket()
	sock.pingErr = errors.New("no pong")
	cfg := Config{KeepAliveInterval: 5 * time.Millisecond, KeepAliveTimeout: 5 * time.Millisecond}
	conn := NewConnection(sock, cfg, testLogger())

	done := make(chan struct{})
	go func() {
		conn.Serve(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		sock.mu.Lock()
		defer sock.mu.Unlock()
		return sock.closed
	}, time.Second, 5*time.Millisecond)

	<-done
}
