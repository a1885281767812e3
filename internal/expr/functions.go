package expr

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

type function struct {
	minArgs int
	maxArgs int // -1 for variadic
	call    func(args []float64) (float64, error)
}

func (f function) arity() string {
	switch {
	case f.maxArgs < 0:
		return fmt.Sprintf("expects at least %d argument(s)", f.minArgs)
	case f.minArgs == f.maxArgs:
		return fmt.Sprintf("expects %d argument(s)", f.minArgs)
	default:
		return fmt.Sprintf("expects %d to %d arguments", f.minArgs, f.maxArgs)
	}
}

func unary(f func(float64) float64) function {
	return function{minArgs: 1, maxArgs: 1, call: func(a []float64) (float64, error) {
		return f(a[0]), nil
	}}
}

// functions is the complete set of callables reachable from an expression.
var functions = map[string]function{
	"abs":   unary(math.Abs),
	"ceil":  unary(math.Ceil),
	"floor": unary(math.Floor),
	"exp":   unary(math.Exp),
	"sqrt":  unary(math.Sqrt),
	"log10": unary(math.Log10),
	"log2":  unary(math.Log2),
	"log": {minArgs: 1, maxArgs: 2, call: func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.Log(a[0]), nil
		}
		d := math.Log(a[1])
		if d == 0 {
			return 0, ErrDivisionByZero
		}
		return math.Log(a[0]) / d, nil
	}},
	"pow": {minArgs: 2, maxArgs: 2, call: func(a []float64) (float64, error) {
		return math.Pow(a[0], a[1]), nil
	}},
	"round": {minArgs: 1, maxArgs: 2, call: func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.Round(a[0]), nil
		}
		digits := a[1]
		if digits != math.Trunc(digits) || digits < 0 || digits > 15 {
			return 0, errors.New("digits must be an integer between 0 and 15")
		}
		scale := math.Pow(10, digits)
		return math.Round(a[0]*scale) / scale, nil
	}},
	"min": {minArgs: 1, maxArgs: -1, call: func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Min(m, v)
		}
		return m, nil
	}},
	"max": {minArgs: 1, maxArgs: -1, call: func(a []float64) (float64, error) {
		m := a[0]
		for _, v := range a[1:] {
			m = math.Max(m, v)
		}
		return m, nil
	}},
}

// Functions lists the callable names, sorted, for help text.
func Functions() []string {
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
