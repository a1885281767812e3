// Package pipeline runs and validates ordered adjuster pipelines.
package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"RateSentinel/internal/adjuster"
	"RateSentinel/internal/model"
)

var (
	ErrEmptyPipeline = errors.New("pipeline has no adjusters")
	ErrNoBasePrice   = errors.New("no competitive adjuster has established a base price")
	ErrInvalidPrice  = errors.New("final price is not a positive finite number")
	ErrStepPanic     = errors.New("adjuster step panicked")
)

// Input is everything one calculation needs. All data is already in memory.
type Input struct {
	CompetitorData    []model.Row
	ClientUnit        model.ClientUnit
	Adjusters         []model.Adjuster
	SnapshotTimestamp time.Time
}

// Calculate runs the adjusters left to right. A competitive step replaces the
// running price; function and temporal steps multiply it. A non-nil error
// means no price could be produced (Price is 0, Warnings holds what was
// gathered before the failure); soft problems are returned as warnings.
// Calculate holds no state between calls.
func Calculate(in Input) (model.CalculationResult, error) {
	if len(in.Adjusters) == 0 {
		return model.CalculationResult{}, ErrEmptyPipeline
	}

	var (
		price     float64
		havePrice bool
		warnings  = []string{}
	)
	ctx := adjuster.Context{CompetitorRows: in.CompetitorData, ClientUnit: in.ClientUnit}
	// failures still carry the warnings gathered so far, for diagnostics
	fail := func(err error) (model.CalculationResult, error) {
		return model.CalculationResult{Warnings: warnings}, err
	}

	for i, a := range in.Adjusters {
		step := i + 1
		switch adj := a.(type) {
		case model.CompetitiveAdjuster:
			out, err := hardStep(func() (adjuster.Outcome, error) {
				return adjuster.Competitive(adj, in.CompetitorData)
			})
			if err != nil {
				return fail(fmt.Errorf("step %d (competitive): %w", step, err))
			}
			price, havePrice = out.Value, true
			warnings = appendStep(warnings, step, out.Warnings)

		case model.FunctionAdjuster:
			if !havePrice {
				return fail(fmt.Errorf("step %d (function): %w", step, ErrNoBasePrice))
			}
			out := softStep(func() adjuster.Outcome { return adjuster.Function(adj, ctx) })
			price *= out.Value
			warnings = appendStep(warnings, step, out.Warnings)

		case model.TemporalAdjuster:
			if !havePrice {
				return fail(fmt.Errorf("step %d (temporal): %w", step, ErrNoBasePrice))
			}
			out := softStep(func() adjuster.Outcome { return adjuster.Temporal(adj, in.SnapshotTimestamp) })
			price *= out.Value
			warnings = appendStep(warnings, step, out.Warnings)

		case nil:
			warnings = append(warnings, fmt.Sprintf("step %d: skipped empty adjuster", step))

		default:
			warnings = append(warnings, fmt.Sprintf("step %d: skipped unrecognized adjuster type %q", step, a.Kind()))
		}
	}

	if !havePrice {
		return fail(ErrNoBasePrice)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return fail(fmt.Errorf("%w (got %g)", ErrInvalidPrice, price))
	}
	return model.CalculationResult{Price: price, Warnings: warnings}, nil
}

// IsNoPriceData reports whether err means competitor data could not anchor a
// price, as opposed to any other calculation failure.
func IsNoPriceData(err error) bool {
	return errors.Is(err, adjuster.ErrNoCompetitors) || errors.Is(err, adjuster.ErrNoPrices)
}

func hardStep(fn func() (adjuster.Outcome, error)) (out adjuster.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrStepPanic, r)
		}
	}()
	return fn()
}

func softStep(fn func() adjuster.Outcome) (out adjuster.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = adjuster.Outcome{
				Value:    adjuster.Neutral,
				Warnings: []string{fmt.Sprintf("adjuster failed unexpectedly (%v), using 1.0", r)},
			}
		}
	}()
	return fn()
}

func appendStep(dst []string, step int, ws []string) []string {
	for _, w := range ws {
		dst = append(dst, fmt.Sprintf("step %d: %s", step, w))
	}
	return dst
}
