package collector

import (
	"context"

	"RateSentinel/internal/model"
)

// Fetcher defines the interface for fetching snapshot data from the pricing backend.
type Fetcher interface {
	FetchLatestSnapshot(ctx context.Context) (model.Snapshot, error)
	FetchRows(ctx context.Context, snapshotID string, filters map[string]string) ([]model.Row, error)
	FetchClientUnit(ctx context.Context, snapshotID string, filters map[string]string) (model.ClientUnit, error)
	Name() string
}
