// Package config loads HCL configuration describing one or more gqlws
// listeners: their connection tunables, an optional dynamic
// allow_subscribe authorization expression, and an optional jq message
// transform. Grounded on the teacher's pkg/vinculum/config package, which
// drives the same kind of thing (servers, buses, authorization
// expressions) from HCL; trimmed to a single pass over two block types
// since this domain has no bus/subscription graph to topologically sort
// the way the teacher's ConfigBuilder does.
package config

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/zap"
)

var configSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "const"},
		{Type: "listener", LabelNames: []string{"name"}},
	},
}

// Config is the result of loading one or more HCL sources: the resolved
// eval context (stdlib + logging functions + const attributes) and every
// listener block that was defined.
type Config struct {
	Logger    *zap.Logger
	Listeners map[string]*ListenerSpec

	evalCtx *hcl.EvalContext
}

// ConfigBuilder accumulates sources before a single Build() pass.
type ConfigBuilder struct {
	logger  *zap.Logger
	sources []any
}

// NewConfig starts a ConfigBuilder.
func NewConfig() *ConfigBuilder {
	return &ConfigBuilder{}
}

// WithLogger sets the logger used for the HCL log_* functions and for
// diagnostics logged during Build.
func (cb *ConfigBuilder) WithLogger(logger *zap.Logger) *ConfigBuilder {
	cb.logger = logger
	return cb
}

// WithSources appends sources (see ParseConfigFiles for accepted shapes).
func (cb *ConfigBuilder) WithSources(sources ...any) *ConfigBuilder {
	cb.sources = append(cb.sources, sources...)
	return cb
}

// Build parses every source and decodes every const and listener block.
func (cb *ConfigBuilder) Build() (*Config, hcl.Diagnostics) {
	cfg := &Config{
		Logger:    cb.logger,
		Listeners: make(map[string]*ListenerSpec),
	}

	bodies, diags := ParseConfigFiles(cb.sources...)
	if diags.HasErrors() {
		return nil, diags
	}

	funcs := standardLibraryFunctions()
	for name, fn := range logFunctions(cb.logger) {
		funcs[name] = fn
	}
	cfg.evalCtx = &hcl.EvalContext{Functions: funcs}

	var blocks hcl.Blocks
	for _, body := range bodies {
		content, _, partialDiags := body.PartialContent(configSchema)
		diags = diags.Extend(partialDiags)
		blocks = append(blocks, content.Blocks...)
	}
	if diags.HasErrors() {
		return nil, diags
	}

	consts, constDiags := decodeConstBlocks(blocks, cfg.evalCtx)
	diags = diags.Extend(constDiags)
	if diags.HasErrors() {
		return nil, diags
	}
	cfg.evalCtx.Variables = consts

	for _, block := range blocks {
		if block.Type != "listener" {
			continue
		}
		spec, specDiags := decodeListenerBlock(cfg, block)
		diags = diags.Extend(specDiags)
		if specDiags.HasErrors() {
			continue
		}
		if _, exists := cfg.Listeners[spec.Name]; exists {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate listener",
				Detail:   fmt.Sprintf("listener %q is already defined", spec.Name),
				Subject:  block.DefRange.Ptr(),
			})
			continue
		}
		cfg.Listeners[spec.Name] = spec
	}

	return cfg, diags
}

// decodeConstBlocks evaluates every attribute of every "const" block
// against the function-only eval context (stdlib and log functions, no
// variables) and returns them as a flat
// variable map. Constants may not reference each other: each is
// evaluated independently, since block attribute order from HCL isn't
// stable enough to resolve a dependency chain without the teacher's
// full dependency-graph machinery, which this package doesn't carry.
func decodeConstBlocks(blocks hcl.Blocks, evalCtx *hcl.EvalContext) (map[string]cty.Value, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	consts := make(map[string]cty.Value)

	for _, block := range blocks {
		if block.Type != "const" {
			continue
		}
		attrs, attrDiags := block.Body.JustAttributes()
		diags = diags.Extend(attrDiags)
		for name, attr := range attrs {
			if _, exists := consts[name]; exists {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate constant",
					Detail:   fmt.Sprintf("constant %q is already defined", name),
					Subject:  &attr.NameRange,
				})
				continue
			}
			val, valDiags := attr.Expr.Value(evalCtx)
			diags = diags.Extend(valDiags)
			if valDiags.HasErrors() {
				continue
			}
			consts[name] = val
		}
	}

	return consts, diags
}
