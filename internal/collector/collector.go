package collector

import (
	"context"
	"fmt"
	"time"

	"RateSentinel/internal/config"
	"RateSentinel/internal/model"
	"RateSentinel/internal/pipeline"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	Snapshot   model.Snapshot
	Rows       []model.Row
	ClientUnit model.ClientUnit
	Err        error

	// LastFilters records the filters of the most recent row fetch.
	LastFilters map[string]string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchLatestSnapshot(_ context.Context) (model.Snapshot, error) {
	if m.Err != nil {
		return model.Snapshot{}, m.Err
	}
	if m.Snapshot.ID == "" {
		return model.Snapshot{ID: "mock", Date: m.Snapshot.Date}, nil
	}
	return m.Snapshot, nil
}

func (m *MockFetcher) FetchRows(_ context.Context, _ string, filters map[string]string) ([]model.Row, error) {
	m.LastFilters = filters
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Rows, nil
}

func (m *MockFetcher) FetchClientUnit(_ context.Context, _ string, _ map[string]string) (model.ClientUnit, error) {
	if m.Err != nil {
		return model.ClientUnit{}, m.Err
	}
	return m.ClientUnit, nil
}

// Collection is the engine input for one pipeline plus where it came from.
type Collection struct {
	Snapshot model.Snapshot
	Input    pipeline.Input
}

// Collector turns a configured pipeline into engine input by fetching its data slice.
type Collector struct {
	Fetcher Fetcher
	Now     func() time.Time
}

// NewCollector creates a new Collector.
func NewCollector(fetcher Fetcher) *Collector {
	return &Collector{Fetcher: fetcher, Now: time.Now}
}

// Collect resolves the pipeline's snapshot, fetches rows and the client unit,
// and builds the adjusters. The snapshot date is the reference timestamp; a
// snapshot without a date falls back to now.
func (c *Collector) Collect(ctx context.Context, p config.PipelineConfig) (*Collection, error) {
	adjusters, err := p.Adjusters.Build()
	if err != nil {
		return nil, fmt.Errorf("build adjusters: %w", err)
	}

	snap := model.Snapshot{ID: p.SnapshotID}
	if snap.ID == "" {
		if snap, err = c.Fetcher.FetchLatestSnapshot(ctx); err != nil {
			return nil, err
		}
	}

	rows, err := c.Fetcher.FetchRows(ctx, snap.ID, p.Filters)
	if err != nil {
		return nil, err
	}
	unit, err := c.Fetcher.FetchClientUnit(ctx, snap.ID, p.Filters)
	if err != nil {
		return nil, err
	}

	ts := snap.Date
	if ts.IsZero() {
		ts = c.Now()
	}
	return &Collection{
		Snapshot: snap,
		Input: pipeline.Input{
			CompetitorData:    rows,
			ClientUnit:        unit,
			Adjusters:         adjusters,
			SnapshotTimestamp: ts,
		},
	}, nil
}

// Validate checks the pipeline against the columns of its current data slice,
// falling back to structural checks when the data cannot be fetched.
func (c *Collector) Validate(ctx context.Context, p config.PipelineConfig) model.ValidationResult {
	adjusters, err := p.Adjusters.Build()
	if err != nil {
		return model.Invalid(err.Error())
	}
	col, err := c.Collect(ctx, p)
	if err != nil {
		res := pipeline.Validate(adjusters)
		res.AddWarning(fmt.Sprintf("data unavailable, column checks skipped: %v", err))
		return res
	}
	return pipeline.ValidateWithColumns(adjusters, pipeline.Columns(col.Input.CompetitorData))
}
