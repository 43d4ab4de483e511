package gqlws

import (
	"context"
	"encoding/json"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
)

// state is Connection's handshake state machine (spec.md §4.D).
type state int

const (
	stateAwaitingInit state = iota
	stateAcknowledging
	stateAcknowledged
	stateClosed
)

// Config bundles the tunables a Connection needs beyond its Socket and
// hook set, mirroring the teacher's ListenerConfig fields
// (config/vws.go's writeTimeout/readTimeout/queueSize/pingInterval).
type Config struct {
	// InitTimeout bounds how long a client has to send connection_init
	// before the connection is closed with 4408. Zero disables the timer.
	InitTimeout time.Duration

	// KeepAliveInterval is how often a transport ping is sent, starting
	// when Serve starts (before any handshake). Zero disables keep-alive
	// entirely.
	KeepAliveInterval time.Duration

	// KeepAliveTimeout bounds how long a ping may go unanswered before the
	// connection is terminated abruptly.
	KeepAliveTimeout time.Duration

	// WriteTimeout bounds each individual frame write.
	WriteTimeout time.Duration

	// QueueSize is the outbound channel's buffer depth; a full queue drops
	// the frame being sent rather than blocking a producer.
	QueueSize int

	// Factory builds the Producer for each "subscribe" message.
	Factory SubscriptionFactory

	// Hooks are this connection's optional lifecycle callbacks.
	Hooks *Hooks

	// Metrics is optional; a nil Metrics records nothing.
	Metrics *Metrics
}

// outboundFrame is one already-encoded frame queued for the writer
// goroutine, matching websockets/connection.go's WebSocketMessage /
// outbound-channel design: all writes funnel through one goroutine so
// concurrent producer emissions can never interleave mid-frame and
// same-id frames stay strictly ordered.
type outboundFrame struct {
	data []byte
}

// Connection is one multiplexed graphql-transport-ws session: the state
// machine, the operation registry, the keep-alive driver, and the single
// writer goroutine that serializes everything this connection sends.
type Connection struct {
	socket Socket
	cfg    Config
	logger *zap.Logger

	registry *Registry

	mu        sync.Mutex
	st        state
	initTimer *time.Timer

	closeRecorded bool
	closeCode     CloseCode
	closeReason   string

	outbound    chan outboundFrame
	done        chan struct{}
	cleanupOnce sync.Once

	wg sync.WaitGroup
}

// NewConnection constructs a Connection ready to be run with Serve. logger
// may be nil, in which case a no-op logger is used (tests commonly pass
// zap.NewNop()).
func NewConnection(socket Socket, cfg Config, logger *zap.Logger) *Connection {
	if logger == nil {
		logger = zap.NewNop()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Connection{
		socket:   socket,
		cfg:      cfg,
		logger:   logger,
		registry: NewRegistry(),
		outbound: make(chan outboundFrame, queueSize),
		done:     make(chan struct{}),
	}
}

// Serve runs the connection to completion: it starts the writer and
// keep-alive goroutines, reads frames until the socket closes or a
// protocol error forces a close, tears down every running operation, and
// returns once cleanup has finished. It never returns an error; all
// failures are logged and translated into a close code.
func (c *Connection) Serve(ctx context.Context) {
	c.logger.Debug("connection starting")
	start := time.Now()
	c.cfg.Metrics.connectionStarted(ctx)

	c.armInitTimer()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.writeLoop(ctx)
	}()

	ka := &keepAlive{
		socket:   c.socket,
		interval: c.cfg.KeepAliveInterval,
		timeout:  c.cfg.KeepAliveTimeout,
		onPing: func() {
			c.cfg.Metrics.pingSent(ctx)
		},
		onTimeout: func() {
			c.logger.Warn("keep-alive pong timeout, terminating connection")
			c.cfg.Metrics.pongTimeout(ctx)
			c.terminateNow(CloseAbnormal, "keep-alive pong timeout")
		},
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ka.run(ctx, c.done)
	}()

	c.readLoop(ctx)

	c.cleanup(ctx)
	c.wg.Wait()
	c.cfg.Metrics.connectionEnded(ctx, time.Since(start))
	c.logger.Debug("connection stopped")
}

func (c *Connection) armInitTimer() {
	if c.cfg.InitTimeout <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initTimer = time.AfterFunc(c.cfg.InitTimeout, func() {
		c.mu.Lock()
		expired := c.st == stateAwaitingInit
		c.mu.Unlock()
		if expired {
			c.logger.Warn("connection_init timeout")
			c.closeWith(CloseConnectionInitTimeout)
		}
	})
}

func (c *Connection) stopInitTimer() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initTimer != nil {
		c.initTimer.Stop()
	}
}

// readLoop pulls frames off the socket and dispatches them, one at a time,
// on this single goroutine — matching messageReader's loop in
// websockets/connection.go. It returns when Receive errors (client close,
// TerminateNow, or the outer ctx being done).
func (c *Connection) readLoop(ctx context.Context) {
	for {
		data, err := c.socket.Receive(ctx)
		if err != nil {
			c.logger.Debug("receive ended", zap.Error(err))
			if code, ok := c.socket.CloseStatus(err); ok {
				c.recordClose(code, code.Reason())
			} else {
				c.recordClose(CloseAbnormal, err.Error())
			}
			return
		}
		if len(data) == 0 {
			continue
		}
		if c.handleFrame(ctx, data) {
			return
		}
	}
}

// handleFrame decodes and dispatches one inbound frame. It returns true
// when the connection should stop reading (a fatal protocol error closed
// it).
func (c *Connection) handleFrame(ctx context.Context, data []byte) bool {
	msg, err := Decode(data, c.cfg.Hooks.reviver())
	if err != nil {
		c.logger.Warn("malformed frame", zap.Error(err))
		c.cfg.Metrics.frameError(ctx, "decode")
		reason := err.Error()
		// WebSocket close reasons are limited to 123 bytes; trim whole runes.
		for len(reason) > 123 {
			_, size := utf8.DecodeLastRuneInString(reason)
			reason = reason[:len(reason)-size]
		}
		c.closeWithReason(CloseBadRequest, reason)
		return true
	}
	c.cfg.Metrics.frameReceived(ctx, msg.Type)

	switch msg.Type {
	case MessageTypeConnectionInit:
		return c.handleConnectionInit(ctx, msg)
	case MessageTypePing:
		return c.handlePing(ctx, msg)
	case MessageTypePong:
		c.cfg.Hooks.onPong(ctx, msg.Payload)
		return false
	case MessageTypeSubscribe:
		return c.handleSubscribe(ctx, msg)
	case MessageTypeComplete:
		return c.handleComplete(ctx, msg)
	default:
		// next/error are server-to-client only; a client sending one is a
		// protocol violation.
		c.logger.Warn("unexpected client message type", zap.String("type", msg.Type))
		c.closeWith(CloseBadRequest)
		return true
	}
}

func (c *Connection) handleConnectionInit(ctx context.Context, msg Message) bool {
	c.mu.Lock()
	st := c.st
	if st == stateAwaitingInit {
		c.st = stateAcknowledging
	}
	c.mu.Unlock()

	if st != stateAwaitingInit {
		c.logger.Warn("duplicate connection_init")
		c.closeWith(CloseTooManyInitRequests)
		return true
	}

	c.stopInitTimer()

	ackPayload, errPayload, err := c.cfg.Hooks.onConnect(ctx, msg.Payload)
	if err != nil {
		c.logger.Error("onConnect hook failed", zap.Error(err))
		c.closeWith(CloseInternalServerError)
		return true
	}
	if errPayload != nil {
		c.logger.Warn("connection rejected by onConnect", zap.String("reason", errPayload.Message))
		c.closeWith(CloseUnauthorized)
		return true
	}

	c.mu.Lock()
	c.st = stateAcknowledged
	c.mu.Unlock()

	c.send(ctx, Message{Type: MessageTypeConnectionAck, Payload: ackPayload})
	return false
}

func (c *Connection) requireAcknowledged() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.st == stateAcknowledged
}

func (c *Connection) handlePing(ctx context.Context, msg Message) bool {
	c.send(ctx, Message{Type: MessageTypePong, Payload: msg.Payload})
	c.cfg.Hooks.onPing(ctx, msg.Payload)
	return false
}

func (c *Connection) handleSubscribe(ctx context.Context, msg Message) bool {
	if !c.requireAcknowledged() {
		c.logger.Warn("subscribe before connection_ack")
		c.closeWith(CloseUnauthorized)
		return true
	}

	if !c.registry.Reserve(msg.Id) {
		c.closeWithReason(CloseSubscriberAlreadyExists, "Subscriber for "+msg.Id+" already exists")
		return true
	}

	if errPayload, err := c.cfg.Hooks.onSubscribe(ctx, &msg); err != nil {
		c.logger.Error("onSubscribe hook failed", zap.Error(err))
		c.registry.Drop(msg.Id)
		c.sendError(ctx, msg.Id, ErrorPayload{Message: "internal server error"})
		return false
	} else if errPayload != nil {
		c.registry.Drop(msg.Id)
		c.sendError(ctx, msg.Id, *errPayload)
		return false
	}

	if c.cfg.Factory == nil {
		c.registry.Drop(msg.Id)
		c.sendError(ctx, msg.Id, ErrorPayload{Message: "no subscription factory configured"})
		return false
	}

	c.wg.Add(1)
	go c.runOperation(ctx, msg.Id, msg)

	return false
}

// runOperation builds and drives one Producer from subscribe to its
// natural end (complete or error), entirely on its own goroutine per
// spec.md §5: the factory call itself, not just Producer.Start, happens
// here so a slow or blocking factory never stalls this connection's
// single reader goroutine.
func (c *Connection) runOperation(ctx context.Context, id string, msg Message) {
	defer c.wg.Done()
	start := time.Now()

	producer, err := c.cfg.Factory(ctx, &msg)
	if err != nil {
		if _, _, existed := c.registry.Drop(id); !existed {
			return
		}
		c.cfg.Metrics.operationEnded(ctx, time.Since(start), true)
		c.sendError(ctx, id, ErrorPayload{Message: err.Error()})
		return
	}

	opCtx, cancel := context.WithCancel(ctx)
	if !c.registry.Install(id, producer, cancel) {
		// The client's "complete" raced the factory and freed the
		// reservation before Install ran; nobody else will Stop this
		// producer, so this goroutine must.
		cancel()
		stopCtx, stopCancel := context.WithTimeout(ctx, c.writeTimeout())
		if err := producer.Stop(stopCtx); err != nil {
			c.logger.Warn("producer stop failed", zap.String("id", id), zap.Error(err))
		}
		stopCancel()
		return
	}

	c.cfg.Hooks.onOperation(ctx, id)
	c.cfg.Metrics.operationStarted(ctx)

	emit := func(emitCtx context.Context, payload json.RawMessage) error {
		if opCtx.Err() != nil {
			// Cancelled by a client "complete" or by teardown; Stop follows.
			return nil
		}
		c.cfg.Hooks.onNext(emitCtx, id, payload)
		return c.send(emitCtx, Message{Type: MessageTypeNext, Id: id, Payload: payload})
	}

	errPayload, err := producer.Start(opCtx, emit)

	if _, _, existed := c.registry.Drop(id); !existed {
		// Already dropped by handleComplete (client cancelled first); don't
		// double-report completion.
		return
	}

	if err != nil {
		c.logger.Error("producer failed", zap.String("id", id), zap.Error(err))
		c.cfg.Metrics.operationEnded(ctx, time.Since(start), true)
		c.closeWith(CloseInternalServerError)
		return
	}
	if errPayload != nil {
		c.cfg.Hooks.onError(ctx, id, []ErrorPayload{*errPayload})
		c.cfg.Metrics.operationEnded(ctx, time.Since(start), true)
		c.sendError(ctx, id, *errPayload)
		return
	}

	c.cfg.Hooks.onComplete(ctx, id)
	c.cfg.Metrics.operationEnded(ctx, time.Since(start), false)
	c.send(ctx, Message{Type: MessageTypeComplete, Id: id})
}

func (c *Connection) handleComplete(ctx context.Context, msg Message) bool {
	producer, cancel, existed := c.registry.Drop(msg.Id)
	if !existed {
		// Already finished or never existed; nothing to cancel.
		return false
	}
	if cancel != nil {
		cancel()
	}
	if producer != nil {
		stopCtx, stopCancel := context.WithTimeout(ctx, c.writeTimeout())
		defer stopCancel()
		if err := producer.Stop(stopCtx); err != nil {
			c.logger.Warn("producer stop failed", zap.String("id", msg.Id), zap.Error(err))
		}
	}
	c.cfg.Hooks.onComplete(ctx, msg.Id)
	return false
}

func (c *Connection) writeTimeout() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return 10 * time.Second
}

func (c *Connection) sendError(ctx context.Context, id string, errs ...ErrorPayload) {
	payload, err := json.Marshal(errs)
	if err != nil {
		c.logger.Error("failed to marshal error payload", zap.Error(err))
		return
	}
	c.send(ctx, Message{Type: MessageTypeError, Id: id, Payload: payload})
}

// send encodes and queues msg for the writer goroutine. It never blocks
// the caller: a full outbound queue drops the frame and logs a warning,
// matching the teacher's "select with default" backpressure choice in
// Connection.OnEvent.
func (c *Connection) send(ctx context.Context, msg Message) error {
	data, err := Encode(msg, c.cfg.Hooks.replacer())
	if err != nil {
		c.logger.Error("failed to encode message", zap.Error(err))
		return err
	}
	select {
	case c.outbound <- outboundFrame{data: []byte(data)}:
		c.cfg.Metrics.frameSent(ctx, msg.Type)
		return nil
	default:
		c.logger.Warn("outbound queue full, dropping frame", zap.String("type", msg.Type), zap.String("id", msg.Id))
		c.cfg.Metrics.frameError(ctx, "queue_full")
		return nil
	}
}

// writeLoop is the single goroutine every outbound frame funnels through,
// grounded on websockets/connection.go's messageSender.
func (c *Connection) writeLoop(ctx context.Context) {
	for {
		select {
		case frame, ok := <-c.outbound:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, c.writeTimeout())
			err := c.socket.Send(writeCtx, frame.data)
			cancel()
			if err != nil {
				c.logger.Debug("write failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Close closes the connection's socket from outside the connection's own
// goroutines, for a listener performing a graceful shutdown. The blocked
// Receive call in readLoop returns an error, which drives the same
// cleanup path handleFrame's internal close paths use; onClose/onDisconnect
// fire from that single cleanup path, not from here.
func (c *Connection) Close(code CloseCode, reason string) error {
	c.recordClose(code, reason)
	return c.socket.Close(code, reason)
}

// closeWith closes the connection with code's standard reason text.
func (c *Connection) closeWith(code CloseCode) {
	c.closeWithReason(code, code.Reason())
}

// closeWithReason closes the connection with an explicit reason, for the
// cases (like a duplicate subscribe id) where the reason interpolates
// request-specific detail the code alone doesn't carry.
func (c *Connection) closeWithReason(code CloseCode, reason string) {
	c.recordClose(code, reason)
	if err := c.socket.Close(code, reason); err != nil {
		c.logger.Debug("close error (may be expected)", zap.Error(err))
	}
}

func (c *Connection) terminateNow(code CloseCode, reason string) {
	c.recordClose(code, reason)
	if err := c.socket.TerminateNow(); err != nil {
		c.logger.Debug("terminate error (may be expected)", zap.Error(err))
	}
}

// recordClose saves the code/reason to report from cleanup, the first time
// it's called for this connection. Multiple teardown paths (an explicit
// close, an external Close, a keep-alive timeout, an observed client
// disconnect) can all race to report a close; whichever gets there first
// wins, matching the single-close-frame semantics of the socket itself.
func (c *Connection) recordClose(code CloseCode, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closeRecorded {
		return
	}
	c.closeRecorded = true
	c.closeCode = code
	c.closeReason = reason
}

// cleanup stops every running operation and closes the outbound queue,
// which lets the writer goroutine send what is still queued and exit. It
// does not close the socket itself; every path that reaches it has already
// seen Receive fail. Safe to call multiple times (only the first call does
// anything), matching the teacher's cleanupOnce idiom.
func (c *Connection) cleanup(ctx context.Context) {
	c.cleanupOnce.Do(func() {
		c.logger.Debug("cleaning up connection")

		c.mu.Lock()
		wasAcknowledged := c.st == stateAcknowledged
		c.st = stateClosed
		if !c.closeRecorded {
			c.closeRecorded = true
			c.closeCode = CloseAbnormal
			c.closeReason = CloseAbnormal.Reason()
		}
		code, reason := c.closeCode, c.closeReason
		c.mu.Unlock()
		c.stopInitTimer()

		for id, producer := range c.registry.Snapshot() {
			c.registry.Cancel(id)
			stopCtx, cancel := context.WithTimeout(ctx, c.writeTimeout())
			if err := producer.Stop(stopCtx); err != nil {
				c.logger.Warn("producer stop failed during cleanup", zap.String("id", id), zap.Error(err))
			}
			cancel()
			c.registry.Drop(id)
		}

		select {
		case <-c.done:
		default:
			close(c.done)
		}
		close(c.outbound)

		c.cfg.Hooks.onClose(ctx, code, reason)
		if wasAcknowledged {
			c.cfg.Hooks.onDisconnect(ctx, code, reason)
		}

		c.logger.Debug("connection cleanup complete")
	})
}
