package server

import (
	"context"
	"encoding/json"

	"github.com/tsarna/graphql-transport-ws/gqlws"
	"github.com/tsarna/graphql-transport-ws/transform"
)

// wrapFactoryWithTransform decorates factory so every Producer it creates
// runs its "next" payloads through fn before they reach the connection's
// real emit. gqlws.Hooks has no "rewrite before send" hook (OnNext is an
// observer, per its doc comment in gqlws/hooks.go), so the transform is
// applied at this seam instead: the Producer/emit boundary is the one
// place a payload can still be rewritten or dropped before it's framed.
func wrapFactoryWithTransform(factory gqlws.SubscriptionFactory, fn transform.MessageTransformFunc) gqlws.SubscriptionFactory {
	return func(ctx context.Context, msg *gqlws.Message) (gqlws.Producer, error) {
		producer, err := factory(ctx, msg)
		if err != nil || producer == nil {
			return producer, err
		}
		return &transformingProducer{inner: producer, id: msg.Id, transform: fn}, nil
	}
}

type transformingProducer struct {
	inner     gqlws.Producer
	id        string
	transform transform.MessageTransformFunc
}

func (p *transformingProducer) Start(ctx context.Context, emit gqlws.Emit) (*gqlws.ErrorPayload, error) {
	wrapped := func(ctx context.Context, payload json.RawMessage) error {
		msg := &gqlws.Message{Type: "next", Id: p.id, Payload: payload}
		out, cont := p.transform(msg)
		if !cont || out == nil {
			return nil
		}
		return emit(ctx, out.Payload)
	}
	return p.inner.Start(ctx, wrapped)
}

func (p *transformingProducer) Stop(ctx context.Context) error {
	return p.inner.Stop(ctx)
}
