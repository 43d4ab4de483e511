package gqlws

import (
	"context"
	"encoding/json"
)

// Emit sends one "next" payload for an operation. It is only valid to call
// from inside Producer.Start, and only until Start's context is done or
// Stop has been called; calling it afterward is a caller bug, not a
// protocol event, and Connection treats it as a no-op rather than a panic.
type Emit func(ctx context.Context, payload json.RawMessage) error

// Producer drives a single subscribe operation's stream of "next" events.
// Start and Stop are invoked on their own goroutines (§5), so a Producer
// implementation must be safe to call Stop concurrently with Start still
// running.
//
// Start returns when the stream ends on its own: a nil ErrorPayload and
// nil error means the operation completes normally (Connection sends
// "complete"); a non-nil ErrorPayload means it ends with a GraphQL error
// (Connection sends "error" with that payload then tears the operation
// down, without calling Stop); a non-nil error means an internal failure:
// Connection logs it and closes the whole connection with 4500.
//
// Stop is called when the client sends "complete" for this id, or when
// the connection itself is closing and needs to unwind every running
// operation. Start's context is cancelled before or concurrently with the
// Stop call; a correct Producer does not need a reliable ordering between
// the two to behave (mirrors the teacher's sync.Once-guarded cleanup
// pattern for cancellation vs. natural completion racing each other).
type Producer interface {
	Start(ctx context.Context, emit Emit) (*ErrorPayload, error)
	Stop(ctx context.Context) error
}

// SubscriptionFactory builds the Producer for one "subscribe" message. Only
// the id's reservation happens on the connection's single read goroutine
// (§4.E); the factory call itself runs on the operation's own goroutine,
// alongside Producer.Start, so a slow or blocking factory never stalls
// dispatch of other inbound frames on the same connection (§5).
//
// Returning a non-nil error rejects the subscribe: Connection sends
// "error" for that id and releases its reservation rather than starting
// the producer. authz policies (§DOMAIN STACK K) plug into
// Hooks.OnSubscribe instead, which runs before the factory is called.
type SubscriptionFactory func(ctx context.Context, msg *Message) (Producer, error)
