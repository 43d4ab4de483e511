package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/tsarna/graphql-transport-ws/authz"
	"github.com/tsarna/graphql-transport-ws/transform"
	"github.com/zclconf/go-cty/cty"
)

// ListenerSpec is the HCL-driven shape of one gqlws listener: everything
// the server package's Adapter Layer needs to stand up an HTTP endpoint
// plus the gqlws.Config tunables that belong with it.
type ListenerSpec struct {
	Name string
	Path string

	InitTimeout       time.Duration
	KeepAliveInterval time.Duration
	KeepAliveTimeout  time.Duration
	WriteTimeout      time.Duration
	QueueSize         int

	AllowSubscribe authz.Func
	Transform      transform.MessageTransformFunc
}

type listenerDefinition struct {
	Path              string         `hcl:"path,optional"`
	InitTimeout       hcl.Expression `hcl:"init_timeout,optional"`
	KeepAliveInterval hcl.Expression `hcl:"keepalive_interval,optional"`
	KeepAliveTimeout  hcl.Expression `hcl:"keepalive_timeout,optional"`
	WriteTimeout      hcl.Expression `hcl:"write_timeout,optional"`
	QueueSize         *int           `hcl:"queue_size,optional"`
	AllowSubscribe    hcl.Expression `hcl:"allow_subscribe,optional"`
	Transform         hcl.Expression `hcl:"transform,optional"`
	DefRange          hcl.Range      `hcl:",def_range"`
}

func decodeListenerBlock(cfg *Config, block *hcl.Block) (*ListenerSpec, hcl.Diagnostics) {
	var def listenerDefinition
	diags := gohcl.DecodeBody(block.Body, cfg.evalCtx, &def)
	if diags.HasErrors() {
		return nil, diags
	}

	spec := &ListenerSpec{
		Name:              block.Labels[0],
		Path:              def.Path,
		InitTimeout:       10 * time.Second,
		KeepAliveInterval: 12 * time.Second,
		KeepAliveTimeout:  10 * time.Second,
		WriteTimeout:      10 * time.Second,
		QueueSize:         16,
		AllowSubscribe:    authz.DenyAll,
	}
	if spec.Path == "" {
		spec.Path = "/graphql"
	}
	if def.QueueSize != nil {
		spec.QueueSize = *def.QueueSize
	}

	if IsExpressionProvided(def.InitTimeout) {
		d, durDiags := ParseDuration(def.InitTimeout, cfg.evalCtx)
		diags = diags.Extend(durDiags)
		spec.InitTimeout = d
	}
	if IsExpressionProvided(def.KeepAliveInterval) {
		d, durDiags := ParseDuration(def.KeepAliveInterval, cfg.evalCtx)
		diags = diags.Extend(durDiags)
		spec.KeepAliveInterval = d
	}
	if IsExpressionProvided(def.KeepAliveTimeout) {
		d, durDiags := ParseDuration(def.KeepAliveTimeout, cfg.evalCtx)
		diags = diags.Extend(durDiags)
		spec.KeepAliveTimeout = d
	}
	if IsExpressionProvided(def.WriteTimeout) {
		d, durDiags := ParseDuration(def.WriteTimeout, cfg.evalCtx)
		diags = diags.Extend(durDiags)
		spec.WriteTimeout = d
	}

	if IsExpressionProvided(def.AllowSubscribe) {
		allowDiags := applyAllowSubscribe(cfg, def.AllowSubscribe, spec)
		diags = diags.Extend(allowDiags)
	}

	if IsExpressionProvided(def.Transform) {
		transformDiags := applyTransform(cfg, def.Transform, spec)
		diags = diags.Extend(transformDiags)
	}

	return spec, diags
}

func applyAllowSubscribe(cfg *Config, expr hcl.Expression, spec *ListenerSpec) hcl.Diagnostics {
	if val, ok := IsConstantExpression(expr); ok {
		switch {
		case val.Type() == cty.Bool && val.True():
			spec.AllowSubscribe = authz.AllowAll
		case val.Type() == cty.Bool:
			spec.AllowSubscribe = authz.DenyAll
		case val.Type() == cty.String:
			spec.AllowSubscribe = authz.AllowOperationPattern(val.AsString())
		default:
			return hcl.Diagnostics{{
				Severity: hcl.DiagError,
				Summary:  "Invalid allow_subscribe value",
				Detail:   fmt.Sprintf("allow_subscribe must be a bool or string, got %s", val.Type().FriendlyName()),
				Subject:  expr.Range().Ptr(),
			}}
		}
		return nil
	}

	spec.AllowSubscribe = authz.Dynamic(expr, cfg.evalCtx)
	return nil
}

func applyTransform(cfg *Config, expr hcl.Expression, spec *ListenerSpec) hcl.Diagnostics {
	val, ok := IsConstantExpression(expr)
	if !ok || val.Type() != cty.String {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid transform value",
			Detail:   "transform must be a constant string holding a jq query",
			Subject:  expr.Range().Ptr(),
		}}
	}

	fn, err := transform.JqTransform(val.AsString(), cfg.Logger)
	if err != nil {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Invalid transform",
			Detail:   err.Error(),
			Subject:  expr.Range().Ptr(),
		}}
	}
	spec.Transform = fn
	return nil
}
