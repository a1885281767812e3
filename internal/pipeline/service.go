package pipeline

import (
	"time"

	"go.uber.org/zap"

	"RateSentinel/internal/expr"
	"RateSentinel/internal/metrics"
	"RateSentinel/internal/model"
)

// Engine wraps Calculate with logging and metrics. Calculate itself stays
// pure; Engine decides what is logged. Negative-clamp warnings are logged once
// per pipeline and expression, everything else on every run.
type Engine struct {
	log     *zap.Logger
	metrics *metrics.Metrics
	seen    *expr.Diagnostics
}

// NewEngine creates an Engine. Both arguments may be nil.
func NewEngine(log *zap.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{log: log, metrics: m, seen: expr.NewDiagnostics()}
}

// Run calculates the named pipeline.
func (e *Engine) Run(name string, in Input) (model.CalculationResult, error) {
	start := time.Now()
	res, err := Calculate(in)
	elapsed := time.Since(start)

	log := e.log.With(zap.String("pipeline", name), zap.Int("rows", len(in.CompetitorData)))
	for _, w := range res.Warnings {
		if expr.IsClampWarning(w) && !e.seen.WarnOnce(name+"\x00"+w) {
			continue
		}
		log.Warn("adjuster warning", zap.String("warning", w))
	}

	status := Status(err)
	e.metrics.ObserveRun(name, status, elapsed, res.Price, len(res.Warnings))
	switch status {
	case metrics.StatusOK:
		log.Info("price calculated", zap.Float64("price", res.Price), zap.Int("warnings", len(res.Warnings)), zap.Duration("elapsed", elapsed))
	case metrics.StatusNoPriceData:
		log.Error("no competitor price data", zap.Error(err))
	default:
		log.Error("calculation failed", zap.Error(err))
	}
	return res, err
}

// Status maps a Run error to a metrics status label.
func Status(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case IsNoPriceData(err):
		return metrics.StatusNoPriceData
	default:
		return metrics.StatusFailed
	}
}
