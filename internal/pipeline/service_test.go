package pipeline

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"RateSentinel/internal/metrics"
	"RateSentinel/internal/model"
)

const documentJSON = `{
  "competitor_data": [
    {"competitor_name": "A", "monthly_rate_web": 100},
    {"competitor_name": "B", "monthly_rate_online": 95, "monthly_rate_web": null},
    {"competitor_name": "modSTORAGE", "monthly_rate_web": 10}
  ],
  "client_unit": {"available_units": 20},
  "adjusters": [
    {"type": "competitive", "price_columns": ["monthly_rate_web", "monthly_rate_online"], "aggregation": "min", "multiplier": 0.97},
    {"type": "function", "variable": "available_units", "function_string": "1.0 - 0.005*x", "domain_min": 0, "domain_max": 100},
    {"type": "temporal", "granularity": "weekly", "multipliers": [0.95, 0.95, 0.95, 0.98, 1.10, 1.15, 1.10]}
  ],
  "snapshot_timestamp": "2024-01-05T10:00:00Z"
}`

func TestDocument_EndToEnd(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(documentJSON))
	if err != nil {
		t.Fatal(err)
	}
	in, err := doc.Input(friday.AddDate(0, 0, 1))
	if err != nil {
		t.Fatal(err)
	}
	if !in.SnapshotTimestamp.Equal(friday) {
		t.Errorf("expected document timestamp, got %v", in.SnapshotTimestamp)
	}
	res, err := Calculate(in)
	if err != nil {
		t.Fatal(err)
	}
	if !closeTo(res.Price, 91.2285) {
		t.Errorf("expected 91.2285, got %g", res.Price)
	}

	cols := doc.Columns()
	want := []string{"competitor_name", "monthly_rate_online", "monthly_rate_web"}
	if strings.Join(cols, ",") != strings.Join(want, ",") {
		t.Errorf("expected columns %v, got %v", want, cols)
	}
}

func TestDocument_BadAdjuster(t *testing.T) {
	doc, err := DecodeDocument(strings.NewReader(`{"adjusters": [{"type": "competitive", "aggregation": "median"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Input(friday); err == nil {
		t.Error("expected build error for unknown aggregation")
	}
}

func TestEngine_LogsClampWarningOnceAndRecordsMetrics(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := metrics.New()
	e := NewEngine(zap.New(core), m)

	in := Input{
		CompetitorData: scenarioRows(),
		ClientUnit:     model.NewClientUnit(5),
		Adjusters: []model.Adjuster{competitiveStep(), model.FunctionAdjuster{
			Variable: model.AvailableUnitsVariable, FunctionString: "2 - x/10", DomainMin: 0, DomainMax: 10,
		}},
	}
	for i := 0; i < 3; i++ {
		if _, err := e.Run("downtown", in); err != nil {
			t.Fatal(err)
		}
	}
	if n := logs.FilterMessage("adjuster warning").Len(); n != 0 {
		t.Errorf("expected no warnings for in-domain value, got %d", n)
	}

	in.ClientUnit = model.NewClientUnit(50) // out of domain and negative result
	for i := 0; i < 3; i++ {
		if _, err := e.Run("downtown", in); err == nil {
			t.Fatal("expected clamped zero price to fail")
		}
	}
	warned := logs.FilterMessage("adjuster warning").All()
	var clamps, domains int
	for _, entry := range warned {
		w := entry.ContextMap()["warning"].(string)
		switch {
		case strings.Contains(w, "clamped to 0"):
			clamps++
		case strings.Contains(w, "outside the expected range"):
			domains++
		}
	}
	if clamps != 1 || domains != 3 {
		t.Errorf("expected clamp warning once and domain warning every run, got clamp=%d domain=%d", clamps, domains)
	}
	if n := logs.FilterMessage("calculation failed").Len(); n != 3 {
		t.Errorf("expected three failure logs, got %d", n)
	}

	if n, err := testutil.GatherAndCount(m.Registry(), "ratesentinel_calculations_total"); err != nil || n != 2 {
		t.Errorf("expected ok and failed series, got %d (%v)", n, err)
	}
}

func TestStatus(t *testing.T) {
	if Status(nil) != metrics.StatusOK {
		t.Error("nil error should be ok")
	}
	_, err := Calculate(Input{Adjusters: []model.Adjuster{competitiveStep()}})
	if Status(err) != metrics.StatusNoPriceData {
		t.Errorf("expected no_price_data, got %s", Status(err))
	}
	_, err = Calculate(Input{})
	if Status(err) != metrics.StatusFailed {
		t.Errorf("expected failed, got %s", Status(err))
	}
}
