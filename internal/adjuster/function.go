package adjuster

import (
	"errors"
	"fmt"
	"strings"

	"RateSentinel/internal/expr"
	"RateSentinel/internal/model"
)

var ErrUnresolvedVariable = errors.New("variable has no numeric value")

// Context is the data a function adjuster may read its variable from.
type Context struct {
	CompetitorRows []model.Row
	ClientUnit     model.ClientUnit
}

// ResolveVariable returns the value bound to name. available_units comes from
// the client unit; any other name is read from the first row holding a finite
// number in that column.
func ResolveVariable(name string, ctx Context) (float64, error) {
	if name == model.AvailableUnitsVariable {
		if ctx.ClientUnit.AvailableUnits == nil {
			return 0, fmt.Errorf("%s: %w", name, ErrUnresolvedVariable)
		}
		v := *ctx.ClientUnit.AvailableUnits
		if !isFinite(v) {
			return 0, fmt.Errorf("%s is not a finite number: %w", name, ErrUnresolvedVariable)
		}
		return v, nil
	}
	for _, r := range ctx.CompetitorRows {
		if f, ok := r[name].Float(); ok {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%s: %w", name, ErrUnresolvedVariable)
}

// DomainWarning returns a warning when value lies outside the declared domain, or "".
func DomainWarning(adj model.FunctionAdjuster, value float64) string {
	if value < adj.DomainMin || value > adj.DomainMax {
		return fmt.Sprintf("%s = %g is outside the expected range [%g, %g]", adj.Variable, value, adj.DomainMin, adj.DomainMax)
	}
	return ""
}

// Function returns the multiplier produced by the adjuster's expression.
// Resolution and evaluation failures yield Neutral with a warning.
func Function(adj model.FunctionAdjuster, ctx Context) Outcome {
	out := Outcome{Value: Neutral}

	x, err := ResolveVariable(adj.Variable, ctx)
	if err != nil {
		out.warn("function adjuster skipped: %v", err)
		return out
	}
	if w := DomainWarning(adj, x); w != "" {
		out.Warnings = append(out.Warnings, w)
	}

	res := expr.Evaluate(adj.FunctionString, x)
	if !res.Success {
		out.warn("function %q failed for %s = %g: %s", adj.FunctionString, adj.Variable, x, res.Error)
		return out
	}
	if res.Warning != "" {
		out.Warnings = append(out.Warnings, res.Warning)
	}
	out.Value = res.Value
	return out
}

// ValidateFunctionConfig checks a function adjuster before it is saved.
// knownColumns, when non-nil, restricts the variable to existing columns
// (available_units is always allowed).
func ValidateFunctionConfig(variable, function string, domainMin, domainMax float64, knownColumns []string) model.ValidationResult {
	res := model.Valid()

	switch {
	case strings.TrimSpace(variable) == "":
		res.AddError("variable name is required")
	case strings.TrimSpace(variable) != variable:
		res.AddError(fmt.Sprintf("variable %q has surrounding whitespace", variable))
	case knownColumns != nil && variable != model.AvailableUnitsVariable && !contains(knownColumns, variable):
		res.AddError(fmt.Sprintf("unknown variable %q", variable))
	}

	domainOK := true
	if !isFinite(domainMin) || !isFinite(domainMax) {
		res.AddError("domain bounds must be finite numbers")
		domainOK = false
	} else if domainMin >= domainMax {
		res.AddError(fmt.Sprintf("domain_min (%g) must be less than domain_max (%g)", domainMin, domainMax))
		domainOK = false
	}

	syntax := expr.ValidateSyntax(function)
	if !syntax.Valid {
		for _, e := range syntax.Errors {
			res.AddError(e)
		}
		return res
	}
	if !domainOK {
		return res
	}

	samples := []float64{domainMin, (domainMin + domainMax) / 2, domainMax}
	if sampled := expr.TestEvaluation(function, samples...); !sampled.Valid {
		for _, e := range sampled.Errors {
			res.AddError(e)
		}
		return res
	}
	for _, x := range samples {
		if r := expr.Evaluate(function, x); r.Value == 0 {
			res.AddWarning(fmt.Sprintf("expression evaluates to 0 at x=%g, which would zero the price", x))
		}
	}
	return res
}
