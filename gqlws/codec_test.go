package gqlws

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Valid(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"subscribe","id":"1","payload":{"query":"{ hi }"}}`), nil)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeSubscribe, msg.Type)
	assert.Equal(t, "1", msg.Id)
	assert.JSONEq(t, `{"query":"{ hi }"}`, string(msg.Payload))
}

func TestDecode_NotJSON(t *testing.T) {
	_, err := Decode([]byte(`not json`), nil)
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrNotJSON, de.Cause)
}

func TestDecode_MissingType(t *testing.T) {
	_, err := Decode([]byte(`{"id":"1"}`), nil)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrInvalidShape, de.Cause)
}

func TestDecode_UnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"bogus"}`), nil)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrUnknownType, de.Cause)
}

func TestDecode_SubscribeMissingId(t *testing.T) {
	_, err := Decode([]byte(`{"type":"subscribe","payload":{}}`), nil)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrInvalidShape, de.Cause)
}

func TestDecode_SubscribeMissingPayload(t *testing.T) {
	_, err := Decode([]byte(`{"type":"subscribe","id":"1"}`), nil)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrInvalidShape, de.Cause)
}

func TestDecode_PingNoIdRequired(t *testing.T) {
	msg, err := Decode([]byte(`{"type":"ping"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, MessageTypePing, msg.Type)
	assert.Empty(t, msg.Id)
}

func TestDecode_ErrorRequiresNonEmptyList(t *testing.T) {
	_, err := Decode([]byte(`{"type":"error","id":"1","payload":[]}`), nil)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrInvalidShape, de.Cause)

	msg, err := Decode([]byte(`{"type":"error","id":"1","payload":[{"message":"boom"}]}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "1", msg.Id)
}

func TestDecode_ReviverRewritesType(t *testing.T) {
	// A reviver that maps a custom wire tag back onto the protocol's own
	// "connection_init" before validation runs.
	revive := func(key string, value any) any {
		if key == "type" && value == "hello" {
			return MessageTypeConnectionInit
		}
		return value
	}
	msg, err := Decode([]byte(`{"type":"hello"}`), revive)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeConnectionInit, msg.Type)
}

func TestEncode_RoundTrip(t *testing.T) {
	msg := Message{Type: MessageTypeNext, Id: "1", Payload: json.RawMessage(`{"data":{"n":1}}`)}
	data, err := Encode(msg, nil)
	require.NoError(t, err)

	decoded, err := Decode([]byte(data), nil)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, decoded.Type)
	assert.Equal(t, msg.Id, decoded.Id)
	assert.JSONEq(t, string(msg.Payload), string(decoded.Payload))
}

func TestEncode_ReplacerRewritesType(t *testing.T) {
	replace := func(key string, value any) any {
		if key == "type" {
			return "custom_" + value.(string)
		}
		return value
	}
	data, err := Encode(Message{Type: MessageTypeConnectionAck}, replace)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(data), &raw))
	assert.Equal(t, "custom_connection_ack", raw["type"])
}

func TestChainReplacers_Empty(t *testing.T) {
	assert.Nil(t, ChainReplacers())
	assert.Nil(t, ChainRevivers())
}

func TestChainReplacers_AppliesInOrder(t *testing.T) {
	chain := ChainReplacers(
		func(key string, value any) any {
			if key == "n" {
				return value.(float64) + 1
			}
			return value
		},
		func(key string, value any) any {
			if key == "n" {
				return value.(float64) * 2
			}
			return value
		},
	)
	assert.Equal(t, float64(4), chain("n", float64(1)))
}
