package recorder

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"RateSentinel/internal/model"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Run is one recorded pipeline calculation.
type Run struct {
	ID         string
	Pipeline   string
	SnapshotID string
	Status     string
	Price      decimal.Decimal // rounded to cents; zero when the run failed
	Warnings   []string
	Error      string
	RowCount   int
	CreatedAt  time.Time
}

// NewRun builds a Run from a calculation outcome.
func NewRun(pipeline, snapshotID string, rowCount int, res model.CalculationResult, err error) *Run {
	run := &Run{
		ID:         uuid.NewString(),
		Pipeline:   pipeline,
		SnapshotID: snapshotID,
		Status:     StatusOK,
		Warnings:   res.Warnings,
		RowCount:   rowCount,
		CreatedAt:  time.Now(),
	}
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		return run
	}
	run.Price = RoundPrice(res.Price)
	return run
}

// RoundPrice rounds a calculated price to cents.
func RoundPrice(p float64) decimal.Decimal {
	return decimal.NewFromFloat(p).Round(2)
}

// Recorder persists calculation history.
type Recorder interface {
	RecordRun(run *Run) error
	// RecentRuns returns up to limit runs for the pipeline, newest first.
	RecentRuns(pipeline string, limit int) ([]Run, error)
	// Prune deletes runs created before the cutoff and reports how many were removed.
	Prune(before time.Time) (int64, error)
	Close() error
}
