package gqlws

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNegotiateSubprotocol_Match(t *testing.T) {
	assert.Equal(t, Subprotocol, NegotiateSubprotocol([]string{"graphql-ws", Subprotocol}))
}

func TestNegotiateSubprotocol_CommaSeparatedHeaderValue(t *testing.T) {
	assert.Equal(t, Subprotocol, NegotiateSubprotocol([]string{"graphql-ws, graphql-transport-ws"}))
}

func TestNegotiateSubprotocol_NoMatch(t *testing.T) {
	assert.Equal(t, NoMatch, NegotiateSubprotocol([]string{"graphql-ws"}))
	assert.Equal(t, NoMatch, NegotiateSubprotocol(nil))
}
