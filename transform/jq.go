package transform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/tsarna/go2cty2go"
	"github.com/tsarna/graphql-transport-ws/gqlws"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

// JqTransform compiles jqQuery and returns a MessageTransformFunc that
// runs it against a message's decoded payload, exposing $type and $id as
// query variables. Grounded directly on transform.JqTransform in the
// teacher's pkg/vinculum/transform/jq.go, retargeted from
// EventBusMessage/$topic to gqlws.Message/$type+$id.
//
// If the query produces no results the message is dropped. If it
// produces one result, that becomes the new payload; more than one
// result is collected into an array. Any failure (bad payload, runtime
// JQ error) passes the original message through unchanged and logs to
// logger if non-nil.
func JqTransform(jqQuery string, logger *zap.Logger) (MessageTransformFunc, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JQ query %q: %w", jqQuery, err)
	}

	compiled, err := gojq.Compile(query, gojq.WithVariables([]string{"$type", "$id"}))
	if err != nil {
		return nil, fmt.Errorf("failed to compile JQ query %q: %w", jqQuery, err)
	}

	return func(msg *gqlws.Message) (*gqlws.Message, bool) {
		var jqInput any
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &jqInput); err != nil {
				if logger != nil {
					logger.Error("jq transform: payload is not JSON",
						zap.String("jq_query", jqQuery), zap.String("type", msg.Type), zap.Error(err))
				}
				return msg, true
			}
		}

		iter := compiled.RunWithContext(context.Background(), jqInput, msg.Type, msg.Id)

		var results []any
		for {
			result, hasResult := iter.Next()
			if !hasResult {
				break
			}
			if execErr, ok := result.(error); ok {
				if logger != nil {
					logger.Error("jq transform: execution error",
						zap.String("jq_query", jqQuery), zap.String("type", msg.Type), zap.Error(execErr))
				}
				return msg, true
			}
			if ctyVal, ok := result.(cty.Value); ok {
				converted, convErr := go2cty2go.CtyToAny(ctyVal)
				if convErr != nil {
					if logger != nil {
						logger.Error("jq transform: failed to convert cty.Value result",
							zap.String("jq_query", jqQuery), zap.Error(convErr))
					}
					return msg, true
				}
				result = converted
			}
			results = append(results, result)
		}

		if len(results) == 0 {
			return nil, false
		}

		var newPayload any
		if len(results) == 1 {
			newPayload = results[0]
		} else {
			newPayload = results
		}

		data, err := json.Marshal(newPayload)
		if err != nil {
			if logger != nil {
				logger.Error("jq transform: failed to marshal result", zap.Error(err))
			}
			return msg, true
		}

		out := *msg
		out.Payload = data
		return &out, true
	}, nil
}
