// Package transform provides composable message transforms for gqlws
// frames, mirroring the chain-of-functions design the teacher uses for
// EventBus messages (pkg/vinculum/transform), retargeted from topics to
// message types and from arbitrary payloads to gqlws.Message.
package transform

import (
	"context"
	"encoding/json"
	"time"

	"github.com/amir-yaghoubi/mqttpattern"
	"github.com/tsarna/graphql-transport-ws/gqlws"
)

// MessageTransformFunc transforms a gqlws.Message. The server package
// applies one to every outgoing "next" message, before Hooks.OnNext sees
// it and before it is sent. Returning nil drops
// the message; returning false for continue stops a chain early even if
// the message survives.
type MessageTransformFunc func(msg *gqlws.Message) (*gqlws.Message, bool)

// DropType returns a MessageTransformFunc that drops messages whose type
// matches the given MQTT-style pattern (most useful for rejecting
// specific operation kinds from a mixed pipeline).
func DropType(pattern string) MessageTransformFunc {
	return func(msg *gqlws.Message) (*gqlws.Message, bool) {
		if mqttpattern.Matches(pattern, msg.Type) {
			return nil, false
		}
		return msg, true
	}
}

// RateLimitById returns a MessageTransformFunc that drops messages for a
// given operation id more often than minInterval. Useful as a crude
// backpressure valve ahead of a chatty producer.
func RateLimitById(minInterval time.Duration) MessageTransformFunc {
	lastSent := make(map[string]time.Time)
	return func(msg *gqlws.Message) (*gqlws.Message, bool) {
		now := time.Now()
		if last, ok := lastSent[msg.Id]; ok && now.Sub(last) < minInterval {
			return nil, false
		}
		lastSent[msg.Id] = now
		return msg, true
	}
}

// Chain combines transforms into one, short-circuiting on drop or a false
// continue flag, the way ChainTransforms does in the teacher's package.
func Chain(transforms ...MessageTransformFunc) MessageTransformFunc {
	return func(msg *gqlws.Message) (*gqlws.Message, bool) {
		current := msg
		for _, t := range transforms {
			if current == nil {
				return nil, true
			}
			var cont bool
			current, cont = t(current)
			if current == nil || !cont {
				return current, cont
			}
		}
		return current, true
	}
}

// SimplePayloadTransformFunc transforms just the decoded payload of a
// message, given its type and id for context.
type SimplePayloadTransformFunc func(ctx context.Context, msgType, id string, payload any) any

// OnType returns a MessageTransformFunc that applies fn to messages whose
// type matches pattern, leaving everything else untouched. If fn returns
// nil the message is dropped.
func OnType(pattern string, fn SimplePayloadTransformFunc) MessageTransformFunc {
	return func(msg *gqlws.Message) (*gqlws.Message, bool) {
		if !mqttpattern.Matches(pattern, msg.Type) {
			return msg, true
		}

		var payload any
		if len(msg.Payload) > 0 {
			_ = json.Unmarshal(msg.Payload, &payload)
		}

		transformed := fn(context.Background(), msg.Type, msg.Id, payload)
		if transformed == nil {
			return nil, true
		}

		data, err := json.Marshal(transformed)
		if err != nil {
			return msg, true
		}

		out := *msg
		out.Payload = data
		return &out, true
	}
}
