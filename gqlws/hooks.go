package gqlws

import (
	"context"
	"encoding/json"
)

// Hooks is the set of optional callbacks a Connection invokes at each
// lifecycle point. Every field is optional; a nil field is simply skipped,
// the way the teacher's metrics and event-auth wrappers nil-check before
// every call rather than requiring a caller to install a no-op.
type Hooks struct {
	// OnConnect runs once, synchronously, after a valid connection_init is
	// received and before connection_ack is sent. Returning a non-nil
	// *ErrorPayload rejects the handshake: Connection closes with 4401
	// Unauthorized instead of acknowledging. Returning a non-nil error is
	// treated as an internal failure (4500). A non-nil ackPayload is sent
	// as connection_ack's payload (§4.D); returning nil sends an
	// unpadded connection_ack the way most handshakes do.
	OnConnect func(ctx context.Context, payload []byte) (ackPayload json.RawMessage, errPayload *ErrorPayload, err error)

	// OnDisconnect runs once when a connection tears down, but only if the
	// connection had reached stateAcknowledged (a successful
	// connection_init) first; a connection that never gets past the
	// handshake has nothing for this hook to report. It never blocks
	// teardown on its own error.
	OnDisconnect func(ctx context.Context, code CloseCode, reason string)

	// OnClose runs exactly once per connection, from the single cleanup
	// path, for every teardown reason (client disconnect, server-initiated
	// close, keep-alive timeout, protocol error) — unlike OnDisconnect it
	// is not gated on having completed the handshake.
	OnClose func(ctx context.Context, code CloseCode, reason string)

	// OnSubscribe runs before a SubscriptionFactory is invoked, letting a
	// caller reject an operation (authz, §DOMAIN STACK K) without ever
	// constructing its Producer. A non-nil *ErrorPayload sends "error" for
	// that id; the factory is not called.
	OnSubscribe func(ctx context.Context, msg *Message) (*ErrorPayload, error)

	// OnOperation runs once a Producer has been constructed and reserved,
	// just before Start is launched on its own goroutine. Purely an
	// observation point (metrics, tracing); it cannot reject the operation.
	OnOperation func(ctx context.Context, id string)

	// OnNext runs for every payload a Producer emits, before it is framed
	// as a "next" message and handed to the writer goroutine.
	OnNext func(ctx context.Context, id string, payload []byte)

	// OnError runs when a Producer's Start returns a GraphQL error. An
	// "error" sent because OnSubscribe or the factory rejected the
	// operation does not go through it.
	OnError func(ctx context.Context, id string, errs []ErrorPayload)

	// OnComplete runs when an operation ends normally, from either side:
	// the Producer finishing on its own or the client sending "complete".
	OnComplete func(ctx context.Context, id string)

	// OnPing runs when a protocol-level "ping" message arrives, after
	// Connection has already queued the automatic "pong" reply.
	OnPing func(ctx context.Context, payload []byte)

	// OnPong runs when a protocol-level "pong" message arrives (a reply to
	// a client-initiated "ping", not the transport keep-alive's pong).
	OnPong func(ctx context.Context, payload []byte)

	// Replacer and Reviver are the caller-configurable message transform
	// hooks from §DOMAIN STACK J, applied to every outbound and inbound
	// frame respectively.
	Replacer Replacer
	Reviver  Reviver

	// Production records the deployment's production-mode setting
	// (server.ListenerConfig.WithProduction sets it). Connection does not
	// read it: a 4500 close always carries the generic reason "Internal
	// server error", whatever its value.
	Production bool
}

func (h *Hooks) onConnect(ctx context.Context, payload []byte) (json.RawMessage, *ErrorPayload, error) {
	if h == nil || h.OnConnect == nil {
		return nil, nil, nil
	}
	return h.OnConnect(ctx, payload)
}

func (h *Hooks) onDisconnect(ctx context.Context, code CloseCode, reason string) {
	if h == nil || h.OnDisconnect == nil {
		return
	}
	h.OnDisconnect(ctx, code, reason)
}

func (h *Hooks) onClose(ctx context.Context, code CloseCode, reason string) {
	if h == nil || h.OnClose == nil {
		return
	}
	h.OnClose(ctx, code, reason)
}

func (h *Hooks) onSubscribe(ctx context.Context, msg *Message) (*ErrorPayload, error) {
	if h == nil || h.OnSubscribe == nil {
		return nil, nil
	}
	return h.OnSubscribe(ctx, msg)
}

func (h *Hooks) onOperation(ctx context.Context, id string) {
	if h == nil || h.OnOperation == nil {
		return
	}
	h.OnOperation(ctx, id)
}

func (h *Hooks) onNext(ctx context.Context, id string, payload []byte) {
	if h == nil || h.OnNext == nil {
		return
	}
	h.OnNext(ctx, id, payload)
}

func (h *Hooks) onError(ctx context.Context, id string, errs []ErrorPayload) {
	if h == nil || h.OnError == nil {
		return
	}
	h.OnError(ctx, id, errs)
}

func (h *Hooks) onComplete(ctx context.Context, id string) {
	if h == nil || h.OnComplete == nil {
		return
	}
	h.OnComplete(ctx, id)
}

func (h *Hooks) onPing(ctx context.Context, payload []byte) {
	if h == nil || h.OnPing == nil {
		return
	}
	h.OnPing(ctx, payload)
}

func (h *Hooks) onPong(ctx context.Context, payload []byte) {
	if h == nil || h.OnPong == nil {
		return
	}
	h.OnPong(ctx, payload)
}

func (h *Hooks) replacer() Replacer {
	if h == nil {
		return nil
	}
	return h.Replacer
}

func (h *Hooks) reviver() Reviver {
	if h == nil {
		return nil
	}
	return h.Reviver
}

func (h *Hooks) production() bool {
	return h != nil && h.Production
}
