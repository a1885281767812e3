package adjuster

import (
	"fmt"
	"math"
	"time"

	"RateSentinel/internal/model"
)

// SlotCount returns the number of multipliers a granularity needs, or 0 when unknown.
func SlotCount(g model.Granularity) int {
	switch g {
	case model.GranularityWeekly:
		return 7
	case model.GranularityMonthly:
		return 12
	}
	return 0
}

// SlotIndex maps ts to a multiplier index: Monday=0..Sunday=6 for weekly,
// January=0..December=11 for monthly. ts's own location decides the day.
func SlotIndex(g model.Granularity, ts time.Time) int {
	if g == model.GranularityMonthly {
		return int(ts.Month()) - 1
	}
	// time.Weekday counts from Sunday=0
	return (int(ts.Weekday()) + 6) % 7
}

// Temporal returns the calendar multiplier for ts. A zero timestamp, a
// multiplier table of the wrong length, or a non-finite slot yields Neutral.
// Negative slots are used as their absolute value; a zero slot yields Neutral.
func Temporal(adj model.TemporalAdjuster, ts time.Time) Outcome {
	out := Outcome{Value: Neutral}

	if ts.IsZero() {
		out.warn("temporal adjuster skipped: no valid reference date")
		return out
	}
	want := SlotCount(adj.Granularity)
	if want == 0 {
		out.warn("temporal adjuster skipped: unknown granularity %q", adj.Granularity)
		return out
	}
	if len(adj.Multipliers) != want {
		out.warn("temporal adjuster skipped: %s table needs %d multipliers, got %d", adj.Granularity, want, len(adj.Multipliers))
		return out
	}

	idx := SlotIndex(adj.Granularity, ts)
	m := adj.Multipliers[idx]
	label := slotName(adj.Granularity, idx)
	switch {
	case math.IsNaN(m) || math.IsInf(m, 0):
		out.warn("temporal multiplier for %s is not a finite number, using 1.0", label)
	case m == 0:
		out.warn("temporal multiplier for %s is 0, using 1.0", label)
	case m < 0:
		out.warn("temporal multiplier for %s is negative (%g), using %g", label, m, -m)
		out.Value = -m
	default:
		out.Value = m
	}
	return out
}

// ValidateTemporalConfig checks a temporal adjuster before it is saved. Unlike
// Temporal, any non-positive slot is an error here.
func ValidateTemporalConfig(g model.Granularity, multipliers []float64) model.ValidationResult {
	res := model.Valid()
	want := SlotCount(g)
	if want == 0 {
		res.AddError(fmt.Sprintf("granularity must be weekly or monthly (got %q)", g))
		return res
	}
	if len(multipliers) != want {
		res.AddError(fmt.Sprintf("%s adjuster needs exactly %d multipliers, got %d", g, want, len(multipliers)))
		return res
	}
	for i, m := range multipliers {
		if !isPositiveFinite(m) {
			res.AddError(fmt.Sprintf("multiplier for %s must be a positive number (got %g)", slotName(g, i), m))
		}
	}
	return res
}

// DayName returns the label for a weekly slot (0=Monday), or "" when out of range.
func DayName(idx int) string {
	if idx < 0 || idx > 6 {
		return ""
	}
	return time.Weekday((idx + 1) % 7).String()
}

// MonthName returns the label for a monthly slot (0=January), or "" when out of range.
func MonthName(idx int) string {
	if idx < 0 || idx > 11 {
		return ""
	}
	return time.Month(idx + 1).String()
}

func slotName(g model.Granularity, idx int) string {
	if g == model.GranularityMonthly {
		return MonthName(idx)
	}
	return DayName(idx)
}
