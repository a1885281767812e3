package model

import (
	"fmt"
	"strings"
)

// AdjusterKind is the type tag of an adjuster.
type AdjusterKind string

const (
	AdjusterCompetitive AdjusterKind = "competitive"
	AdjusterFunction    AdjusterKind = "function"
	AdjusterTemporal    AdjusterKind = "temporal"
)

// Aggregation selects how competitor prices are combined.
type Aggregation string

const (
	AggregateMin Aggregation = "min"
	AggregateMax Aggregation = "max"
	AggregateAvg Aggregation = "avg"
)

// Granularity selects the calendar slot table of a temporal adjuster.
type Granularity string

const (
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// AvailableUnitsVariable is the function variable bound to the client's inventory.
const AvailableUnitsVariable = "available_units"

// Adjuster is one step of a pricing pipeline.
type Adjuster interface {
	Kind() AdjusterKind
}

// CompetitiveAdjuster establishes the base price from competitor rows.
type CompetitiveAdjuster struct {
	PriceColumns []string    // fallback chain, first usable column wins
	Aggregation  Aggregation
	Multiplier   float64
}

// FunctionAdjuster derives a multiplier from a user expression over one variable.
type FunctionAdjuster struct {
	Variable       string
	FunctionString string
	DomainMin      float64
	DomainMax      float64
}

// TemporalAdjuster picks a multiplier by weekday (7 slots, Monday first) or month (12 slots).
type TemporalAdjuster struct {
	Granularity Granularity
	Multipliers []float64
}

// UnknownAdjuster carries a type tag this build does not recognize.
type UnknownAdjuster struct {
	Type string
}

func (CompetitiveAdjuster) Kind() AdjusterKind { return AdjusterCompetitive }
func (FunctionAdjuster) Kind() AdjusterKind    { return AdjusterFunction }
func (TemporalAdjuster) Kind() AdjusterKind    { return AdjusterTemporal }
func (u UnknownAdjuster) Kind() AdjusterKind   { return AdjusterKind(u.Type) }

// AdjusterSpec is the serialized form of an adjuster as it appears in
// config files and API payloads. The type tag decides which fields apply.
type AdjusterSpec struct {
	Type string `json:"type" yaml:"type"`

	PriceColumns []string `json:"price_columns,omitempty" yaml:"price_columns,omitempty"`
	Aggregation  string   `json:"aggregation,omitempty" yaml:"aggregation,omitempty"`
	Multiplier   *float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty"`

	Variable       string   `json:"variable,omitempty" yaml:"variable,omitempty"`
	FunctionString string   `json:"function_string,omitempty" yaml:"function_string,omitempty"`
	DomainMin      *float64 `json:"domain_min,omitempty" yaml:"domain_min,omitempty"`
	DomainMax      *float64 `json:"domain_max,omitempty" yaml:"domain_max,omitempty"`

	Granularity string    `json:"granularity,omitempty" yaml:"granularity,omitempty"`
	Multipliers []float64 `json:"multipliers,omitempty" yaml:"multipliers,omitempty"`
}

// Build converts the spec into its typed adjuster. Unrecognized type tags
// become UnknownAdjuster so newer configs still load.
func (s AdjusterSpec) Build() (Adjuster, error) {
	switch AdjusterKind(strings.TrimSpace(s.Type)) {
	case AdjusterCompetitive:
		agg := Aggregation(s.Aggregation)
		switch agg {
		case AggregateMin, AggregateMax, AggregateAvg:
		case "":
			return nil, fmt.Errorf("competitive adjuster: aggregation is required")
		default:
			return nil, fmt.Errorf("competitive adjuster: unknown aggregation %q", s.Aggregation)
		}
		mult := 1.0
		if s.Multiplier != nil {
			mult = *s.Multiplier
		}
		return CompetitiveAdjuster{
			PriceColumns: append([]string(nil), s.PriceColumns...),
			Aggregation:  agg,
			Multiplier:   mult,
		}, nil
	case AdjusterFunction:
		if s.DomainMin == nil || s.DomainMax == nil {
			return nil, fmt.Errorf("function adjuster: domain_min and domain_max are required")
		}
		return FunctionAdjuster{
			Variable:       strings.TrimSpace(s.Variable),
			FunctionString: strings.TrimSpace(s.FunctionString),
			DomainMin:      *s.DomainMin,
			DomainMax:      *s.DomainMax,
		}, nil
	case AdjusterTemporal:
		g := Granularity(s.Granularity)
		if g != GranularityWeekly && g != GranularityMonthly {
			return nil, fmt.Errorf("temporal adjuster: unknown granularity %q", s.Granularity)
		}
		return TemporalAdjuster{
			Granularity: g,
			Multipliers: append([]float64(nil), s.Multipliers...),
		}, nil
	case "":
		return nil, fmt.Errorf("adjuster type is required")
	default:
		return UnknownAdjuster{Type: s.Type}, nil
	}
}

// SpecOf converts a typed adjuster back into its serialized form.
func SpecOf(a Adjuster) AdjusterSpec {
	switch t := a.(type) {
	case CompetitiveAdjuster:
		m := t.Multiplier
		return AdjusterSpec{
			Type:         string(AdjusterCompetitive),
			PriceColumns: t.PriceColumns,
			Aggregation:  string(t.Aggregation),
			Multiplier:   &m,
		}
	case FunctionAdjuster:
		lo, hi := t.DomainMin, t.DomainMax
		return AdjusterSpec{
			Type:           string(AdjusterFunction),
			Variable:       t.Variable,
			FunctionString: t.FunctionString,
			DomainMin:      &lo,
			DomainMax:      &hi,
		}
	case TemporalAdjuster:
		return AdjusterSpec{
			Type:        string(AdjusterTemporal),
			Granularity: string(t.Granularity),
			Multipliers: t.Multipliers,
		}
	default:
		return AdjusterSpec{Type: string(a.Kind())}
	}
}

// BuildAdjusters builds every spec in order, reporting the first failing position.
func BuildAdjusters(specs []AdjusterSpec) ([]Adjuster, error) {
	out := make([]Adjuster, 0, len(specs))
	for i, s := range specs {
		a, err := s.Build()
		if err != nil {
			return nil, fmt.Errorf("adjuster %d: %w", i+1, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// Pipeline is an ordered list of adjuster specs, as stored in config files
// and sent by the dashboard.
type Pipeline []AdjusterSpec

// Build converts every spec in order.
func (p Pipeline) Build() ([]Adjuster, error) {
	return BuildAdjusters(p)
}

// PipelineOf converts typed adjusters back to their wire form.
func PipelineOf(adjusters []Adjuster) Pipeline {
	p := make(Pipeline, len(adjusters))
	for i, a := range adjusters {
		p[i] = SpecOf(a)
	}
	return p
}
