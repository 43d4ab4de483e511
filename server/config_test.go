package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsarna/graphql-transport-ws/authz"
	"github.com/tsarna/graphql-transport-ws/config"
	"github.com/tsarna/graphql-transport-ws/gqlws"
)

func TestListenerConfig_BuildRequiresFactory(t *testing.T) {
	_, err := NewListenerConfig().Build()
	assert.Error(t, err)
}

func TestListenerConfig_WithAuthzWiresOnSubscribe(t *testing.T) {
	cfg := NewListenerConfig().
		WithFactory(func(ctx context.Context, msg *gqlws.Message) (gqlws.Producer, error) { return nil, nil }).
		WithAuthz(authz.DenyAll)
	listener, err := cfg.Build()
	require.NoError(t, err)
	require.NotNil(t, listener.config.gqlwsConfig.Hooks)
	require.NotNil(t, listener.config.gqlwsConfig.Hooks.OnSubscribe)

	errPayload, err := listener.config.gqlwsConfig.Hooks.OnSubscribe(context.Background(), &gqlws.Message{Type: "subscribe", Id: "1"})
	require.NoError(t, err)
	assert.NotNil(t, errPayload)
}

func TestListenerConfig_FromListenerSpecAppliesTunables(t *testing.T) {
	src := `
listener "x" {
  path       = "/sub"
  queue_size = 4
}
`
	c, diags := config.NewConfig().WithSources([]byte(src)).Build()
	require.False(t, diags.HasErrors(), "%v", diags)

	lc := NewListenerConfig().
		WithFactory(func(ctx context.Context, msg *gqlws.Message) (gqlws.Producer, error) { return nil, nil }).
		FromListenerSpec(c.Listeners["x"])

	assert.Equal(t, "/sub", lc.path)
	assert.Equal(t, 4, lc.gqlwsConfig.QueueSize)
}
