package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/sosodev/duration"
	"github.com/zclconf/go-cty/cty"
)

// ParseDuration evaluates expr and interprets the result as a duration,
// accepting a bare number (seconds), an ISO 8601 duration string ("PT5M"),
// or a Go duration string ("5m"). Grounded on the teacher's
// Config.ParseDuration (pkg/vinculum/config/util.go), which every
// duration-shaped HCL attribute (ping_interval, write_timeout, ...) runs
// through instead of a fixed schema type.
func ParseDuration(expr hcl.Expression, evalCtx *hcl.EvalContext) (time.Duration, hcl.Diagnostics) {
	val, diags := expr.Value(evalCtx)
	if diags.HasErrors() {
		return 0, diags
	}

	switch val.Type() {
	case cty.Number:
		seconds, accuracy := val.AsBigFloat().Float64()
		if accuracy != big.Exact {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagWarning,
				Summary:  "Duration precision loss",
				Detail:   "the number provided for duration may have lost precision when converted to seconds",
				Subject:  expr.Range().Ptr(),
			})
		}
		if seconds < 0 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid duration",
				Detail:   "duration must be positive",
				Subject:  expr.Range().Ptr(),
			})
			return 0, diags
		}
		return time.Duration(seconds * float64(time.Second)), diags

	case cty.String:
		str := strings.TrimSpace(val.AsString())

		if strings.HasPrefix(str, "P") {
			dur, err := duration.Parse(str)
			if err != nil {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid ISO 8601 duration",
					Detail:   fmt.Sprintf("failed to parse ISO 8601 duration %q: %v", str, err),
					Subject:  expr.Range().Ptr(),
				})
				return 0, diags
			}
			td := dur.ToTimeDuration()
			if td < 0 {
				diags = diags.Append(&hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Invalid duration",
					Detail:   "duration must be positive",
					Subject:  expr.Range().Ptr(),
				})
				return 0, diags
			}
			return td, diags
		}

		td, err := time.ParseDuration(str)
		if err != nil {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid duration format",
				Detail:   fmt.Sprintf("failed to parse duration %q: %v; expected a number (seconds), ISO 8601 duration (e.g. PT5M), or Go duration (e.g. 5m)", str, err),
				Subject:  expr.Range().Ptr(),
			})
			return 0, diags
		}
		if td < 0 {
			diags = diags.Append(&hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid duration",
				Detail:   "duration must be positive",
				Subject:  expr.Range().Ptr(),
			})
			return 0, diags
		}
		return td, diags

	default:
		diags = diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid duration type",
			Detail:   fmt.Sprintf("expected a number or string, got %s", val.Type().FriendlyName()),
			Subject:  expr.Range().Ptr(),
		})
		return 0, diags
	}
}
