package gqlws

import "encoding/json"

// Message type tags for the graphql-transport-ws protocol.
// These correspond to the "type" field in wire messages.
const (
	MessageTypeConnectionInit = "connection_init"
	MessageTypeConnectionAck  = "connection_ack"
	MessageTypePing           = "ping"
	MessageTypePong           = "pong"
	MessageTypeSubscribe      = "subscribe"
	MessageTypeNext           = "next"
	MessageTypeError          = "error"
	MessageTypeComplete       = "complete"
)

// idBearingTypes lists the message types that must carry a non-empty Id.
var idBearingTypes = map[string]bool{
	MessageTypeSubscribe: true,
	MessageTypeNext:      true,
	MessageTypeError:     true,
	MessageTypeComplete:  true,
}

// payloadRequiredTypes lists the message types whose Payload must be present.
var payloadRequiredTypes = map[string]bool{
	MessageTypeSubscribe: true,
	MessageTypeNext:      true,
	MessageTypeError:     true,
}

// knownTypes is the closed set of type tags the protocol recognizes.
var knownTypes = map[string]bool{
	MessageTypeConnectionInit: true,
	MessageTypeConnectionAck:  true,
	MessageTypePing:           true,
	MessageTypePong:           true,
	MessageTypeSubscribe:      true,
	MessageTypeNext:           true,
	MessageTypeError:          true,
	MessageTypeComplete:       true,
}

// Message is the wire envelope for every graphql-transport-ws frame.
// Payload is left as json.RawMessage: the transport never interprets it,
// only the caller-supplied SubscriptionFactory and hooks do.
type Message struct {
	Type    string          `json:"type"`
	Id      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrorPayload is a single GraphQL-style error descriptor. The error message
// type carries a non-empty list of these.
type ErrorPayload struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// hasId reports whether typ is required to carry a non-empty id.
func hasId(typ string) bool {
	return idBearingTypes[typ]
}

// requiresPayload reports whether typ is required to carry a payload.
func requiresPayload(typ string) bool {
	return payloadRequiredTypes[typ]
}
