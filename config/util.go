package config

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
)

// IsExpressionProvided reports whether expr was actually written in the
// configuration. HCL hands back an empty, zero-length expression for
// optional attributes that weren't set; a real expression always has a
// non-empty source range. Grounded on the teacher's
// config.IsExpressionProvided (pkg/vinculum/config/util.go).
func IsExpressionProvided(expr hcl.Expression) bool {
	return expr != nil && expr.Range().End.Byte > expr.Range().Start.Byte
}

// IsConstantExpression reports whether expr can be evaluated without any
// variables or functions in scope, i.e. it's a literal. Constant
// allow_subscribe/transform expressions are resolved once at config load
// instead of being re-evaluated per message.
func IsConstantExpression(expr hcl.Expression) (cty.Value, bool) {
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, false
	}
	return val, true
}
