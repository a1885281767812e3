// Package adjuster implements the individual pricing pipeline steps.
//
// Competitive establishes a base price from competitor rows. Function and
// Temporal return multipliers for the running price and never fail: a broken
// step degrades to the neutral multiplier and reports a warning instead.
package adjuster

import (
	"errors"
	"fmt"
	"math"

	"RateSentinel/internal/model"
)

// Neutral is the multiplier that leaves a price unchanged.
const Neutral = 1.0

// DefaultPriceColumns is the fallback chain used when a competitive adjuster
// names no columns. Each column alone is sparsely filled; taken in this order
// their union covers most competitors.
var DefaultPriceColumns = []string{
	"monthly_rate_web",
	"monthly_rate_online",
	"monthly_rate_standard",
	"web_rate",
	"monthly_rate_regular",
}

var (
	ErrNoCompetitors      = errors.New("no competitor rows after excluding client rows")
	ErrNoPrices           = errors.New("no competitor row has a usable price in the fallback columns")
	ErrUnknownAggregation = errors.New("unknown aggregation")
)

// Outcome is the value produced by a step plus any soft warnings.
type Outcome struct {
	Value    float64
	Warnings []string
}

func (o *Outcome) warn(format string, args ...any) {
	o.Warnings = append(o.Warnings, fmt.Sprintf(format, args...))
}

// EffectiveColumns returns the adjuster's fallback chain, or the default chain when it is empty.
func EffectiveColumns(adj model.CompetitiveAdjuster) []string {
	if len(adj.PriceColumns) > 0 {
		return adj.PriceColumns
	}
	return DefaultPriceColumns
}

// CompetitorRows drops the client's own rows.
func CompetitorRows(rows []model.Row) []model.Row {
	out := make([]model.Row, 0, len(rows))
	for _, r := range rows {
		if !r.IsClient() {
			out = append(out, r)
		}
	}
	return out
}

// ExtractPrice scans chain in order and returns the first finite positive number.
func ExtractPrice(row model.Row, chain []string) (price float64, column string, ok bool) {
	for _, col := range chain {
		v, found := row[col]
		if !found {
			continue
		}
		if f, isNum := v.Float(); isNum && f > 0 {
			return f, col, true
		}
	}
	return 0, "", false
}

// Aggregate combines prices, which must be non-empty.
func Aggregate(prices []float64, agg model.Aggregation) (float64, error) {
	if len(prices) == 0 {
		return 0, ErrNoPrices
	}
	switch agg {
	case model.AggregateMin:
		m := prices[0]
		for _, p := range prices[1:] {
			m = math.Min(m, p)
		}
		return m, nil
	case model.AggregateMax:
		m := prices[0]
		for _, p := range prices[1:] {
			m = math.Max(m, p)
		}
		return m, nil
	case model.AggregateAvg:
		sum := 0.0
		for _, p := range prices {
			sum += p
		}
		return sum / float64(len(prices)), nil
	}
	return 0, fmt.Errorf("%w %q", ErrUnknownAggregation, agg)
}

// Competitive computes the base price. It replaces the running price rather
// than multiplying it. An invalid multiplier is reported as a warning and the
// unmultiplied aggregate is returned.
func Competitive(adj model.CompetitiveAdjuster, rows []model.Row) (Outcome, error) {
	competitors := CompetitorRows(rows)
	if len(competitors) == 0 {
		return Outcome{}, ErrNoCompetitors
	}

	chain := EffectiveColumns(adj)
	prices := make([]float64, 0, len(competitors))
	for _, r := range competitors {
		if p, _, ok := ExtractPrice(r, chain); ok {
			prices = append(prices, p)
		}
	}
	if len(prices) == 0 {
		return Outcome{}, ErrNoPrices
	}

	base, err := Aggregate(prices, adj.Aggregation)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Value: base}
	if !isPositiveFinite(adj.Multiplier) {
		out.warn("competitive multiplier %g is not a positive number, using unmultiplied %s price", adj.Multiplier, adj.Aggregation)
		return out, nil
	}
	out.Value = base * adj.Multiplier
	return out, nil
}

// ValidateCompetitiveConfig checks a competitive adjuster before it is saved.
// Columns missing from knownColumns (when given) are reported as warnings
// because sparse columns may simply be absent from the current snapshot.
func ValidateCompetitiveConfig(adj model.CompetitiveAdjuster, knownColumns []string) model.ValidationResult {
	res := model.Valid()
	switch adj.Aggregation {
	case model.AggregateMin, model.AggregateMax, model.AggregateAvg:
	default:
		res.AddError(fmt.Sprintf("aggregation must be one of min, max, avg (got %q)", adj.Aggregation))
	}
	if !isPositiveFinite(adj.Multiplier) {
		res.AddError(fmt.Sprintf("multiplier must be a positive number (got %g)", adj.Multiplier))
	}

	seen := make(map[string]bool, len(adj.PriceColumns))
	for _, col := range adj.PriceColumns {
		if col == "" {
			res.AddError("price column names cannot be empty")
			continue
		}
		if seen[col] {
			res.AddWarning(fmt.Sprintf("price column %q is listed more than once", col))
		}
		seen[col] = true
		if knownColumns != nil && !contains(knownColumns, col) {
			res.AddWarning(fmt.Sprintf("price column %q is not present in the current data", col))
		}
	}
	return res
}

// PriceReport explains how competitive aggregation would see a row set.
type PriceReport struct {
	TotalRows      int
	ClientRows     int
	CompetitorRows int
	PricedRows     int
	Competitors    int            // distinct competitor names with a usable price
	ColumnHits     map[string]int // column -> rows that took their price from it
}

// PriceDiagnostics reports row and price coverage for chain (the default chain when empty).
func PriceDiagnostics(rows []model.Row, chain []string) PriceReport {
	if len(chain) == 0 {
		chain = DefaultPriceColumns
	}
	rep := PriceReport{TotalRows: len(rows), ColumnHits: make(map[string]int)}
	names := make(map[string]struct{})
	for _, r := range rows {
		if r.IsClient() {
			rep.ClientRows++
			continue
		}
		rep.CompetitorRows++
		if _, col, ok := ExtractPrice(r, chain); ok {
			rep.PricedRows++
			rep.ColumnHits[col]++
			names[r.CompetitorName()] = struct{}{}
		}
	}
	rep.Competitors = len(names)
	return rep
}

// Problem returns the structural reason aggregation would fail, or nil.
func (r PriceReport) Problem() error {
	switch {
	case r.CompetitorRows == 0:
		return ErrNoCompetitors
	case r.PricedRows == 0:
		return ErrNoPrices
	}
	return nil
}

// Coverage is the share of competitor rows that yielded a price.
func (r PriceReport) Coverage() float64 {
	if r.CompetitorRows == 0 {
		return 0
	}
	return float64(r.PricedRows) / float64(r.CompetitorRows)
}

func isPositiveFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
