package adjuster

import (
	"errors"
	"math"
	"strings"
	"testing"

	"RateSentinel/internal/model"
)

func unitsAdjuster(fn string) model.FunctionAdjuster {
	return model.FunctionAdjuster{Variable: model.AvailableUnitsVariable, FunctionString: fn, DomainMin: 0, DomainMax: 100}
}

func TestFunction_AvailableUnits(t *testing.T) {
	out := Function(unitsAdjuster("1.0 - 0.005*x"), Context{ClientUnit: model.NewClientUnit(20)})
	if !approx(out.Value, 0.9) {
		t.Errorf("expected 0.9, got %g", out.Value)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", out.Warnings)
	}
}

func TestFunction_UnresolvedVariableIsNeutral(t *testing.T) {
	adj := model.FunctionAdjuster{Variable: "occupancy", FunctionString: "x * 2", DomainMin: 0, DomainMax: 1}
	ctx := Context{
		CompetitorRows: []model.Row{row("A", map[string]model.Value{"monthly_rate_web": model.Number(100)})},
		ClientUnit:     model.NewClientUnit(5),
	}
	out := Function(adj, ctx)
	if out.Value != 1.0 {
		t.Errorf("expected exactly 1.0, got %g", out.Value)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", out.Warnings)
	}

	out = Function(unitsAdjuster("x"), Context{})
	if out.Value != 1.0 {
		t.Errorf("missing client unit: expected 1.0, got %g", out.Value)
	}
}

func TestResolveVariable_FirstNumericRow(t *testing.T) {
	ctx := Context{CompetitorRows: []model.Row{
		row("A", map[string]model.Value{"occupancy": model.Null()}),
		row("B", map[string]model.Value{"occupancy": model.String("high")}),
		row("C", map[string]model.Value{"occupancy": model.Number(0.8)}),
		row("D", map[string]model.Value{"occupancy": model.Number(0.3)}),
	}}
	v, err := ResolveVariable("occupancy", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v != 0.8 {
		t.Errorf("expected first numeric value 0.8, got %g", v)
	}

	nan := math.NaN()
	if _, err := ResolveVariable(model.AvailableUnitsVariable, Context{ClientUnit: model.ClientUnit{AvailableUnits: &nan}}); !errors.Is(err, ErrUnresolvedVariable) {
		t.Errorf("expected ErrUnresolvedVariable for NaN units, got %v", err)
	}
}

func TestFunction_OutOfDomainWarns(t *testing.T) {
	out := Function(unitsAdjuster("1.0 - 0.005*x"), Context{ClientUnit: model.NewClientUnit(150)})
	if !approx(out.Value, 0.25) {
		t.Errorf("expected 0.25, got %g", out.Value)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "outside") {
		t.Errorf("expected domain warning, got %v", out.Warnings)
	}
}

func TestFunction_EvaluationFailureIsNeutral(t *testing.T) {
	out := Function(unitsAdjuster("1 / x"), Context{ClientUnit: model.NewClientUnit(0)})
	if out.Value != 1.0 {
		t.Errorf("expected 1.0, got %g", out.Value)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", out.Warnings)
	}
}

func TestFunction_NegativeClampWarns(t *testing.T) {
	out := Function(unitsAdjuster("-1*x"), Context{ClientUnit: model.NewClientUnit(5)})
	if out.Value != 0 {
		t.Errorf("expected clamped 0, got %g", out.Value)
	}
	if len(out.Warnings) != 1 || !strings.Contains(out.Warnings[0], "clamped") {
		t.Errorf("expected clamp warning, got %v", out.Warnings)
	}
}

func TestValidateFunctionConfig(t *testing.T) {
	tests := []struct {
		name     string
		variable string
		fn       string
		min, max float64
		known    []string
		valid    bool
	}{
		{"valid units", "available_units", "1.0 - 0.005*x", 0, 100, nil, true},
		{"valid known column", "occupancy", "x", 0, 1, []string{"occupancy"}, true},
		{"units always known", "available_units", "x + 1", 0, 1, []string{"occupancy"}, true},
		{"empty variable", " ", "x", 0, 1, nil, false},
		{"padded variable", " available_units", "x", 0, 1, nil, false},
		{"padded known column", "occupancy ", "x", 0, 1, []string{"occupancy"}, false},
		{"unknown column", "foo", "x", 0, 1, []string{"occupancy"}, false},
		{"inverted domain", "available_units", "x", 10, 1, nil, false},
		{"equal domain", "available_units", "x", 1, 1, nil, false},
		{"infinite domain", "available_units", "x", 0, math.Inf(1), nil, false},
		{"bad syntax", "available_units", "x +", 0, 1, nil, false},
		{"no x", "available_units", "2", 0, 1, nil, false},
		{"runtime error at midpoint", "available_units", "1 / (x - 50)", 0, 100, nil, false},
		{"runtime error at bound", "available_units", "1 / x", 0, 100, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ValidateFunctionConfig(tt.variable, tt.fn, tt.min, tt.max, tt.known)
			if res.Valid != tt.valid {
				t.Errorf("expected valid=%v, got %v (%v)", tt.valid, res.Valid, res.Errors)
			}
		})
	}

	res := ValidateFunctionConfig("available_units", "1 - x/100", 0, 100, nil)
	if !res.Valid || len(res.Warnings) != 1 {
		t.Errorf("expected valid with zero-price warning, got %+v", res)
	}
}
