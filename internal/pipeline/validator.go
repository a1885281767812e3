package pipeline

import (
	"fmt"

	"RateSentinel/internal/adjuster"
	"RateSentinel/internal/model"
)

// Validate statically checks an adjuster list before it is run or saved.
func Validate(adjusters []model.Adjuster) model.ValidationResult {
	return ValidateWithColumns(adjusters, nil)
}

// ValidateWithColumns is Validate with the set of columns present in the
// current data, used to check function variables and price columns.
func ValidateWithColumns(adjusters []model.Adjuster, knownColumns []string) model.ValidationResult {
	if len(adjusters) == 0 {
		return model.Invalid("pipeline must contain at least one adjuster")
	}

	res := model.Valid()
	firstCompetitive, competitive := -1, 0
	for i, a := range adjusters {
		if _, ok := a.(model.CompetitiveAdjuster); ok {
			if firstCompetitive < 0 {
				firstCompetitive = i
			}
			competitive++
		}
	}
	if firstCompetitive < 0 {
		res.AddError("pipeline must contain a competitive adjuster to establish base price")
	}

	for i, a := range adjusters {
		pos := i + 1
		switch adj := a.(type) {
		case model.CompetitiveAdjuster:
			merge(&res, pos, adj.Kind(), adjuster.ValidateCompetitiveConfig(adj, knownColumns))
		case model.FunctionAdjuster:
			if firstCompetitive < 0 || i < firstCompetitive {
				res.AddError(fmt.Sprintf("adjuster %d (function) comes before any competitive adjuster, so there is no price to adjust", pos))
			}
			merge(&res, pos, adj.Kind(), adjuster.ValidateFunctionConfig(adj.Variable, adj.FunctionString, adj.DomainMin, adj.DomainMax, knownColumns))
		case model.TemporalAdjuster:
			if firstCompetitive < 0 || i < firstCompetitive {
				res.AddError(fmt.Sprintf("adjuster %d (temporal) comes before any competitive adjuster, so there is no price to adjust", pos))
			}
			merge(&res, pos, adj.Kind(), adjuster.ValidateTemporalConfig(adj.Granularity, adj.Multipliers))
		case nil:
			res.AddError(fmt.Sprintf("adjuster %d is empty", pos))
		default:
			res.AddWarning(fmt.Sprintf("adjuster %d has unrecognized type %q and will be skipped", pos, a.Kind()))
		}
	}

	if competitive > 1 {
		res.AddWarning(fmt.Sprintf("pipeline has %d competitive adjusters; each one replaces the price set before it rather than compounding", competitive))
	}
	return res
}

// CanAdd reports whether an adjuster of kind may be appended to adjusters.
// Multiplicative kinds need a competitive adjuster already in place.
func CanAdd(adjusters []model.Adjuster, kind model.AdjusterKind) bool {
	switch kind {
	case model.AdjusterCompetitive:
		return true
	case model.AdjusterFunction, model.AdjusterTemporal:
		for _, a := range adjusters {
			if _, ok := a.(model.CompetitiveAdjuster); ok {
				return true
			}
		}
	}
	return false
}

func merge(dst *model.ValidationResult, pos int, kind model.AdjusterKind, src model.ValidationResult) {
	for _, e := range src.Errors {
		dst.AddError(fmt.Sprintf("adjuster %d (%s): %s", pos, kind, e))
	}
	for _, w := range src.Warnings {
		dst.AddWarning(fmt.Sprintf("adjuster %d (%s): %s", pos, kind, w))
	}
}
