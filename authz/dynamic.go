package authz

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/hashicorp/hcl/v2"
	"github.com/tsarna/go2cty2go"
	"github.com/tsarna/graphql-transport-ws/evalctx"
	"github.com/tsarna/graphql-transport-ws/gqlws"
	"github.com/zclconf/go-cty/cty"
)

// Dynamic builds a Func that evaluates an HCL expression per subscribe
// message, grounded directly on the teacher's Config.MakeAllowSend
// (pkg/vinculum/config/vws.go): the expression sees a "ctx" object with
// the message exposed as an attribute, a cty.Bool result allows or
// denies, and a cty.String result is an explicit rejection reason.
// Retargeted from msg.Topic/msg.Data (an EventBus message en route to a
// publish) to msg.Type/msg.Id/the decoded subscribe payload.
func Dynamic(expr hcl.Expression, baseEvalCtx *hcl.EvalContext) Func {
	return func(ctx context.Context, msg *gqlws.Message) (*gqlws.ErrorPayload, error) {
		var payload any
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return nil, err
			}
		}

		ctyPayload, err := go2cty2go.AnyToCty(payload)
		if err != nil {
			return nil, err
		}

		evalCtx := evalctx.New(ctx).
			WithStringAttribute("type", msg.Type).
			WithStringAttribute("id", msg.Id).
			WithAttribute("payload", ctyPayload).
			BuildEvalContext(baseEvalCtx)

		result, diags := expr.Value(evalCtx)
		if diags.HasErrors() {
			return nil, diags
		}

		switch result.Type() {
		case cty.Bool:
			if result.True() {
				return nil, nil
			}
			return &gqlws.ErrorPayload{Message: "subscription is not allowed"}, nil
		case cty.String:
			return &gqlws.ErrorPayload{Message: result.AsString()}, nil
		default:
			return nil, errors.New("allow_subscribe expression must return a boolean or string")
		}
	}
}
