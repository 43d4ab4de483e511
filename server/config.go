// Package server is the Adapter Layer between net/http plus
// github.com/coder/websocket and the transport-agnostic gqlws package: a
// fluent ListenerConfig builder and a Listener that accepts, tracks, and
// gracefully drains connections. Grounded on the teacher's
// websockets/server package (config.go + listener.go).
package server

import (
	"time"

	"github.com/tsarna/graphql-transport-ws/authz"
	"github.com/tsarna/graphql-transport-ws/config"
	"github.com/tsarna/graphql-transport-ws/gqlws"
	"github.com/tsarna/graphql-transport-ws/o11y"
	"github.com/tsarna/graphql-transport-ws/transform"
	"go.uber.org/zap"
)

// Defaults mirror the teacher's server.ListenerConfig defaults
// (websockets/server/config.go), renamed to gqlws's vocabulary.
const (
	DefaultQueueSize         = 16
	DefaultInitTimeout       = 10 * time.Second
	DefaultKeepAliveInterval = 12 * time.Second
	DefaultKeepAliveTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 10 * time.Second
)

// ListenerConfig configures a Listener. Use NewListenerConfig and chain
// With* methods, then Build.
type ListenerConfig struct {
	logger      *zap.Logger
	path        string
	gqlwsConfig gqlws.Config
	transform   transform.MessageTransformFunc
}

// NewListenerConfig starts a ListenerConfig with the teacher's same
// secure-by-default posture: no factory, no authorization until set.
func NewListenerConfig() *ListenerConfig {
	return &ListenerConfig{
		path: "/graphql",
		gqlwsConfig: gqlws.Config{
			InitTimeout:       DefaultInitTimeout,
			KeepAliveInterval: DefaultKeepAliveInterval,
			KeepAliveTimeout:  DefaultKeepAliveTimeout,
			WriteTimeout:      DefaultWriteTimeout,
			QueueSize:         DefaultQueueSize,
		},
	}
}

// WithLogger sets the Listener's logger.
func (c *ListenerConfig) WithLogger(logger *zap.Logger) *ListenerConfig {
	c.logger = logger
	return c
}

// WithPath sets the HTTP path the Listener expects to be mounted at; it's
// descriptive only (ServeHTTP doesn't route on it, and Listener doesn't
// log it).
func (c *ListenerConfig) WithPath(path string) *ListenerConfig {
	if path != "" {
		c.path = path
	}
	return c
}

// WithFactory sets the SubscriptionFactory every subscribe is dispatched
// to. Required.
func (c *ListenerConfig) WithFactory(factory gqlws.SubscriptionFactory) *ListenerConfig {
	c.gqlwsConfig.Factory = factory
	return c
}

// WithHooks sets the connection lifecycle hooks.
func (c *ListenerConfig) WithHooks(hooks *gqlws.Hooks) *ListenerConfig {
	c.gqlwsConfig.Hooks = hooks
	return c
}

// WithAuthz sets the subscribe authorization policy, wiring it to
// Hooks.OnSubscribe the way config/vws.go wires allow_send to
// EventAuthFunc.
func (c *ListenerConfig) WithAuthz(fn authz.Func) *ListenerConfig {
	if fn == nil {
		return c
	}
	if c.gqlwsConfig.Hooks == nil {
		c.gqlwsConfig.Hooks = &gqlws.Hooks{}
	}
	c.gqlwsConfig.Hooks.OnSubscribe = fn
	return c
}

// WithTransform sets a transform applied to every outgoing "next" payload
// before it's sent, by wrapping the configured Factory's producers.
func (c *ListenerConfig) WithTransform(fn transform.MessageTransformFunc) *ListenerConfig {
	c.transform = fn
	return c
}

// WithProduction sets Hooks.Production, named after the Development flag
// cmd/vinculum/cmd/server.go's setupLogger switches. Connection's 4500
// close reason is the generic "Internal server error" whether or not it
// is set.
func (c *ListenerConfig) WithProduction(production bool) *ListenerConfig {
	if c.gqlwsConfig.Hooks == nil {
		c.gqlwsConfig.Hooks = &gqlws.Hooks{}
	}
	c.gqlwsConfig.Hooks.Production = production
	return c
}

// WithMetricsProvider wires an o11y.MetricsProvider into the connection
// metrics, the way config/vws.go's server block accepts a metrics
// provider reference.
func (c *ListenerConfig) WithMetricsProvider(provider o11y.MetricsProvider) *ListenerConfig {
	c.gqlwsConfig.Metrics = gqlws.NewMetrics(provider)
	return c
}

// WithInitTimeout overrides the connection_init grace period.
func (c *ListenerConfig) WithInitTimeout(d time.Duration) *ListenerConfig {
	if d > 0 {
		c.gqlwsConfig.InitTimeout = d
	}
	return c
}

// WithKeepAliveInterval overrides the ping interval; 0 disables keep-alive.
func (c *ListenerConfig) WithKeepAliveInterval(d time.Duration) *ListenerConfig {
	if d >= 0 {
		c.gqlwsConfig.KeepAliveInterval = d
	}
	return c
}

// WithKeepAliveTimeout overrides the pong deadline.
func (c *ListenerConfig) WithKeepAliveTimeout(d time.Duration) *ListenerConfig {
	if d > 0 {
		c.gqlwsConfig.KeepAliveTimeout = d
	}
	return c
}

// WithWriteTimeout overrides the per-frame write deadline.
func (c *ListenerConfig) WithWriteTimeout(d time.Duration) *ListenerConfig {
	if d > 0 {
		c.gqlwsConfig.WriteTimeout = d
	}
	return c
}

// WithQueueSize overrides the per-connection outbound queue depth.
func (c *ListenerConfig) WithQueueSize(n int) *ListenerConfig {
	if n > 0 {
		c.gqlwsConfig.QueueSize = n
	}
	return c
}

// FromListenerSpec applies every tunable, the authorization policy, and
// the transform carried by an HCL-decoded config.ListenerSpec, the way
// config/vws.go's block processor feeds a decoded server definition into
// a server.ListenerConfig.
func (c *ListenerConfig) FromListenerSpec(spec *config.ListenerSpec) *ListenerConfig {
	return c.
		WithPath(spec.Path).
		WithInitTimeout(spec.InitTimeout).
		WithKeepAliveInterval(spec.KeepAliveInterval).
		WithKeepAliveTimeout(spec.KeepAliveTimeout).
		WithWriteTimeout(spec.WriteTimeout).
		WithQueueSize(spec.QueueSize).
		WithAuthz(spec.AllowSubscribe).
		WithTransform(spec.Transform)
}

// Build validates the configuration and constructs a Listener.
func (c *ListenerConfig) Build() (*Listener, error) {
	if c.gqlwsConfig.Factory == nil {
		return nil, errMissingFactory
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.transform != nil {
		c.gqlwsConfig.Factory = wrapFactoryWithTransform(c.gqlwsConfig.Factory, c.transform)
	}
	return newListener(c), nil
}
