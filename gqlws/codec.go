package gqlws

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Replacer rewrites a single (key, value) pair before a message is
// serialized, the way a teacher's transform.MessageTransformFunc rewrites a
// field of an EventBusMessage. Returning a different value substitutes it;
// returning the same value leaves it untouched. A Replacer never drops a
// whole message — only a field.
type Replacer func(key string, value any) any

// Reviver is the decode-time counterpart of Replacer, applied to each
// (key, value) pair of the parsed JSON object after Unmarshal.
type Reviver func(key string, value any) any

// ChainReplacers composes replacers into a single Replacer, applying them in order.
// A nil/empty chain is the identity transform.
func ChainReplacers(fns ...Replacer) Replacer {
	if len(fns) == 0 {
		return nil
	}
	return func(key string, value any) any {
		for _, fn := range fns {
			value = fn(key, value)
		}
		return value
	}
}

// ChainRevivers composes revivers into a single Reviver, applying them in order.
func ChainRevivers(fns ...Reviver) Reviver {
	if len(fns) == 0 {
		return nil
	}
	return func(key string, value any) any {
		for _, fn := range fns {
			value = fn(key, value)
		}
		return value
	}
}

// DecodeErrorCause distinguishes why a decode failed.
type DecodeErrorCause int

const (
	// ErrNotJSON means the raw bytes were not valid JSON at all.
	ErrNotJSON DecodeErrorCause = iota
	// ErrInvalidShape means the bytes parsed as JSON but didn't satisfy the
	// message schema (missing type, missing id on an id-bearing type, etc.).
	ErrInvalidShape
	// ErrUnknownType means the type tag isn't one of the closed set.
	ErrUnknownType
)

// DecodeError is returned by Decode when a frame is malformed. The
// orchestrator (§4.G) closes the connection with 4400 BadRequest whenever
// it sees one, using Error() (truncated per §6) as the close reason.
type DecodeError struct {
	Cause DecodeErrorCause
	Raw   []byte
	Err   error
}

func (e *DecodeError) Error() string {
	switch e.Cause {
	case ErrNotJSON:
		return fmt.Sprintf("invalid JSON: %v", e.Err)
	case ErrUnknownType:
		return fmt.Sprintf("unknown message type: %v", e.Err)
	default:
		return fmt.Sprintf("invalid message shape: %v", e.Err)
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode serializes a Message to its wire JSON form. If replace is non-nil
// it is applied to every top-level (key, value) pair before marshaling,
// letting a caller rewrite e.g. the "type" key the way scenario 1 in the
// spec's testable properties requires. Absent optional fields (Id,
// Payload) are omitted, never emitted as null.
func Encode(msg Message, replace Replacer) (string, error) {
	if replace == nil {
		data, err := json.Marshal(msg)
		if err != nil {
			return "", fmt.Errorf("encode message: %w", err)
		}
		return string(data), nil
	}

	raw := map[string]any{"type": msg.Type}
	if msg.Id != "" {
		raw["id"] = msg.Id
	}
	if len(msg.Payload) > 0 {
		var payload any
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return "", fmt.Errorf("encode message: decode payload for replacer: %w", err)
		}
		raw["payload"] = payload
	}

	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = replace(k, v)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(data), nil
}

// Decode parses and validates a wire frame. On success the returned Message
// is guaranteed to satisfy the schema in spec.md §3: a known type, a
// non-empty id if the type requires one, and a non-empty payload if the
// type requires one (and, for "error", a non-empty error list).
func Decode(data []byte, revive Reviver) (Message, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Message{}, &DecodeError{Cause: ErrNotJSON, Raw: data, Err: err}
	}

	if revive != nil {
		revived := make(map[string]json.RawMessage, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				revived[k] = v
				continue
			}
			val = revive(k, val)
			out, err := json.Marshal(val)
			if err != nil {
				return Message{}, &DecodeError{Cause: ErrInvalidShape, Raw: data, Err: err}
			}
			revived[k] = out
		}
		raw = revived
	}

	typeRaw, ok := raw["type"]
	if !ok {
		return Message{}, &DecodeError{Cause: ErrInvalidShape, Raw: data, Err: errors.New("missing \"type\"")}
	}
	var typ string
	if err := json.Unmarshal(typeRaw, &typ); err != nil {
		return Message{}, &DecodeError{Cause: ErrInvalidShape, Raw: data, Err: errors.New("\"type\" must be a string")}
	}
	if !knownTypes[typ] {
		return Message{}, &DecodeError{Cause: ErrUnknownType, Raw: data, Err: fmt.Errorf("unknown type %q", typ)}
	}

	msg := Message{Type: typ}

	if idRaw, ok := raw["id"]; ok {
		var id string
		if err := json.Unmarshal(idRaw, &id); err != nil || id == "" {
			return Message{}, &DecodeError{Cause: ErrInvalidShape, Raw: data, Err: fmt.Errorf("%q requires a non-empty string id", typ)}
		}
		msg.Id = id
	}
	if hasId(typ) && msg.Id == "" {
		return Message{}, &DecodeError{Cause: ErrInvalidShape, Raw: data, Err: fmt.Errorf("%q requires an id", typ)}
	}

	if payloadRaw, ok := raw["payload"]; ok && string(payloadRaw) != "null" {
		msg.Payload = payloadRaw
	}
	if requiresPayload(typ) && len(msg.Payload) == 0 {
		return Message{}, &DecodeError{Cause: ErrInvalidShape, Raw: data, Err: fmt.Errorf("%q requires a payload", typ)}
	}

	if typ == MessageTypeError {
		var errs []json.RawMessage
		if err := json.Unmarshal(msg.Payload, &errs); err != nil || len(errs) == 0 {
			return Message{}, &DecodeError{Cause: ErrInvalidShape, Raw: data, Err: errors.New("\"error\" payload must be a non-empty list")}
		}
	}

	return msg, nil
}
