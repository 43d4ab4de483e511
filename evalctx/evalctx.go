// Package evalctx builds the per-evaluation "ctx" variable handed to
// HCL expressions that run dynamically against live data (an authz
// decision, a config-driven transform), split out of the config package
// so that both config and authz can depend on it without a cycle between
// them.
//
// Grounded on the teacher's config.ContextObjectBuilder
// (pkg/vinculum/config/ctx.go): capsule-wrap a Go context.Context,
// attach named attributes describing the thing being evaluated, and
// build a child *hcl.EvalContext from it.
package evalctx

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

var contextCapsuleType = cty.CapsuleWithOps("_context", reflect.TypeOf((*any)(nil)).Elem(), &cty.CapsuleOps{
	GoString: func(val interface{}) string {
		return fmt.Sprintf("_ctx(%p)", val)
	},
	TypeGoString: func(_ reflect.Type) string {
		return "_ctx"
	},
})

func newContextCapsule(ctx context.Context) cty.Value {
	return cty.CapsuleVal(contextCapsuleType, &ctx)
}

// FromObject extracts the context.Context embedded in a "ctx" object built
// by Builder, for HCL functions that need request-scoped context.
func FromObject(obj cty.Value) (context.Context, hcl.Diagnostics) {
	if !obj.Type().IsObjectType() {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Expected object",
			Detail:   fmt.Sprintf("expected object, got %s", obj.Type().FriendlyName()),
		}}
	}

	val := obj.GetAttr("_ctx")
	if val.Type() != contextCapsuleType {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Expected context capsule",
			Detail:   fmt.Sprintf("expected context capsule, got %s", val.Type().FriendlyName()),
		}}
	}

	ctx, ok := val.EncapsulatedValue().(*context.Context)
	if !ok {
		return nil, hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Encapsulated value is not a context",
			Detail:   fmt.Sprintf("encapsulated value is not a context, got %T", val.EncapsulatedValue()),
		}}
	}
	return *ctx, nil
}

// Builder builds the "ctx" variable exposed to a dynamically evaluated
// HCL expression.
type Builder struct {
	ctx        context.Context
	attributes map[string]cty.Value
	functions  map[string]function.Function
}

// New starts a Builder rooted at ctx.
func New(ctx context.Context) *Builder {
	return &Builder{
		ctx:        ctx,
		attributes: make(map[string]cty.Value),
	}
}

// WithAttribute attaches an arbitrary cty.Value attribute.
func (b *Builder) WithAttribute(name string, value cty.Value) *Builder {
	b.attributes[name] = value
	return b
}

// WithStringAttribute attaches a string attribute.
func (b *Builder) WithStringAttribute(name, value string) *Builder {
	b.attributes[name] = cty.StringVal(value)
	return b
}

// WithFunctions merges a map of named functions into the builder's
// eval context.
func (b *Builder) WithFunctions(funcs map[string]function.Function) *Builder {
	if b.functions == nil {
		b.functions = make(map[string]function.Function, len(funcs))
	}
	for name, fn := range funcs {
		b.functions[name] = fn
	}
	return b
}

// Build produces the cty object assigned to the "ctx" variable.
func (b *Builder) Build() cty.Value {
	b.attributes["_ctx"] = newContextCapsule(b.ctx)
	return cty.ObjectVal(b.attributes)
}

// BuildEvalContext derives a child of parent with "ctx" bound to Build()'s
// result and Functions set to whatever was registered via WithFunctions.
func (b *Builder) BuildEvalContext(parent *hcl.EvalContext) *hcl.EvalContext {
	evalCtx := parent.NewChild()
	evalCtx.Variables = map[string]cty.Value{"ctx": b.Build()}
	evalCtx.Functions = b.functions
	return evalCtx
}
