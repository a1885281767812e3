// Package expr evaluates user-authored arithmetic expressions over a single
// variable x. The grammar has no loops, assignment, or host access: only
// numeric literals, x, the constants pi and e, + - * / ^, parentheses, and
// a fixed set of math functions.
package expr

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"RateSentinel/internal/model"
)

// NeutralValue is returned when evaluation fails.
const NeutralValue = 1.0

// DefaultSamples are the x values TestEvaluation uses when none are given.
var DefaultSamples = []float64{0, 1, 10, 100, 1000}

// Result is the outcome of a single evaluation.
type Result struct {
	Success bool
	Value   float64
	Error   string
	// Warning is set when a negative result was clamped to zero. Its text
	// depends only on the expression, so callers can de-duplicate on it.
	Warning string
}

const clampSuffix = "returned a negative value, clamped to 0"

// IsClampWarning reports whether w is, or ends with, a negative-clamp warning.
func IsClampWarning(w string) bool {
	return strings.HasSuffix(w, clampSuffix)
}

// Evaluate compiles and evaluates src with x bound. It never panics; failures
// come back as Success=false with Value=NeutralValue.
func Evaluate(src string, x float64) Result {
	prog, err := Compile(src)
	if err != nil {
		return failure(err)
	}
	return prog.Evaluate(x)
}

// Evaluate runs a compiled program under the same rules as the package-level Evaluate.
func (p *Program) Evaluate(x float64) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failure(fmt.Errorf("evaluation panicked: %v", r))
		}
	}()

	v, err := p.Eval(x)
	if err != nil {
		return failure(err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return failure(fmt.Errorf("result is not a finite number (x=%g)", x))
	}
	if v < 0 {
		return Result{
			Success: true,
			Value:   0,
			Warning: fmt.Sprintf("expression %q %s", p.source, clampSuffix),
		}
	}
	return Result{Success: true, Value: v}
}

func failure(err error) Result {
	return Result{Success: false, Value: NeutralValue, Error: err.Error()}
}

// ValidateSyntax parses src without evaluating it. The expression must be
// non-empty and reference x.
func ValidateSyntax(src string) model.ValidationResult {
	if strings.TrimSpace(src) == "" {
		return model.Invalid(ErrEmpty.Error())
	}
	prog, err := Compile(src)
	if err != nil {
		return model.Invalid("invalid expression: " + err.Error())
	}
	if !prog.UsesVariable() {
		return model.Invalid("expression must reference the variable " + Variable)
	}
	return model.Valid()
}

// TestEvaluation evaluates src at each sample (DefaultSamples when none are
// given) and fails on the first sample that does not evaluate. This catches
// errors that only occur for some x, such as division by (x - 10).
func TestEvaluation(src string, samples ...float64) model.ValidationResult {
	if len(samples) == 0 {
		samples = DefaultSamples
	}
	prog, err := Compile(src)
	if err != nil {
		if strings.TrimSpace(src) == "" {
			return model.Invalid(ErrEmpty.Error())
		}
		return model.Invalid("invalid expression: " + err.Error())
	}
	for _, x := range samples {
		if res := prog.Evaluate(x); !res.Success {
			return model.Invalid(fmt.Sprintf("evaluation failed at x=%g: %s", x, res.Error))
		}
	}
	return model.Valid()
}

// Diagnostics remembers which warnings have already been reported so callers
// can log a clamping warning once per expression instead of once per call.
type Diagnostics struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDiagnostics returns an empty collector. The zero value is also ready to use.
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{seen: make(map[string]struct{})}
}

// WarnOnce returns true the first time key is seen.
func (d *Diagnostics) WarnOnce(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]struct{})
	}
	if _, ok := d.seen[key]; ok {
		return false
	}
	d.seen[key] = struct{}{}
	return true
}
