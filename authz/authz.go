// Package authz implements subscribe authorization policies pluggable
// into gqlws.Hooks.OnSubscribe, grounded on the teacher's EventAuthFunc
// family (pkg/vinculum/websockets/server/evauth.go), retargeted from
// "may this client publish to this topic" to "may this client subscribe
// with this operation".
package authz

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/amir-yaghoubi/mqttpattern"
	"github.com/tsarna/graphql-transport-ws/gqlws"
)

// Func is the shape gqlws.Hooks.OnSubscribe expects: it inspects the
// subscribe message and either allows it (nil, nil), rejects it with a
// GraphQL error ((*gqlws.ErrorPayload, nil)), or fails hard ((nil, err))
// if the check itself couldn't run.
type Func func(ctx context.Context, msg *gqlws.Message) (*gqlws.ErrorPayload, error)

// AllowAll allows every subscribe.
func AllowAll(ctx context.Context, msg *gqlws.Message) (*gqlws.ErrorPayload, error) {
	return nil, nil
}

// DenyAll rejects every subscribe with a generic error. This is the safe
// default for a deployment that hasn't configured a policy.
func DenyAll(ctx context.Context, msg *gqlws.Message) (*gqlws.ErrorPayload, error) {
	return &gqlws.ErrorPayload{Message: "subscriptions are not allowed"}, nil
}

// AllowOperationPattern allows a subscribe only when the payload's
// "operationName" field (if present) matches the given MQTT-style
// pattern; absence of an operationName is treated as no match.
func AllowOperationPattern(pattern string) Func {
	return func(ctx context.Context, msg *gqlws.Message) (*gqlws.ErrorPayload, error) {
		name := operationName(msg)
		if name != "" && mqttpattern.Matches(pattern, name) {
			return nil, nil
		}
		return &gqlws.ErrorPayload{Message: fmt.Sprintf("operation %q is not allowed", name)}, nil
	}
}

// Chain applies funcs in sequence, stopping at the first rejection or
// hard error. All must allow for the subscribe to proceed.
func Chain(funcs ...Func) Func {
	return func(ctx context.Context, msg *gqlws.Message) (*gqlws.ErrorPayload, error) {
		for _, fn := range funcs {
			errPayload, err := fn(ctx, msg)
			if err != nil || errPayload != nil {
				return errPayload, err
			}
		}
		return nil, nil
	}
}

func operationName(msg *gqlws.Message) string {
	var body struct {
		OperationName string `json:"operationName"`
	}
	if len(msg.Payload) == 0 {
		return ""
	}
	if err := json.Unmarshal(msg.Payload, &body); err != nil {
		return ""
	}
	return body.OperationName
}
