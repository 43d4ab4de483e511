package server

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/graphql-transport-ws/gqlws"
)

type recordingProducer struct {
	payloads []json.RawMessage
}

func (p *recordingProducer) Start(ctx context.Context, emit gqlws.Emit) (*gqlws.ErrorPayload, error) {
	for _, payload := range p.payloads {
		if err := emit(ctx, payload); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (p *recordingProducer) Stop(ctx context.Context) error { return nil }

func TestWrapFactoryWithTransform_RewritesPayload(t *testing.T) {
	inner := func(ctx context.Context, msg *gqlws.Message) (gqlws.Producer, error) {
		return &recordingProducer{payloads: []json.RawMessage{[]byte(`{"greeting":"hi"}`)}}, nil
	}

	fn := func(msg *gqlws.Message) (*gqlws.Message, bool) {
		out := *msg
		out.Payload = []byte(`{"wrapped":true}`)
		return &out, true
	}

	factory := wrapFactoryWithTransform(inner, fn)
	producer, err := factory(context.Background(), &gqlws.Message{Type: "subscribe", Id: "1"})
	require.NoError(t, err)

	var got []string
	_, err = producer.Start(context.Background(), func(ctx context.Context, payload json.RawMessage) error {
		got = append(got, string(payload))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.JSONEq(t, `{"wrapped":true}`, got[0])
}

func TestWrapFactoryWithTransform_DropsWhenTransformDrops(t *testing.T) {
	inner := func(ctx context.Context, msg *gqlws.Message) (gqlws.Producer, error) {
		return &recordingProducer{payloads: []json.RawMessage{[]byte(`{"n":1}`)}}, nil
	}
	fn := func(msg *gqlws.Message) (*gqlws.Message, bool) { return nil, false }

	factory := wrapFactoryWithTransform(inner, fn)
	producer, err := factory(context.Background(), &gqlws.Message{Type: "subscribe", Id: "1"})
	require.NoError(t, err)

	var calls int
	_, err = producer.Start(context.Background(), func(ctx context.Context, payload json.RawMessage) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, calls)
}
