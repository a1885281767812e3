package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"RateSentinel/internal/model"
)

// Document is the JSON form of a calculation request, as exchanged with the
// dashboard and read by the calculate command.
type Document struct {
	CompetitorData    []model.Row      `json:"competitor_data"`
	ClientUnit        model.ClientUnit `json:"client_unit"`
	Adjusters         model.Pipeline   `json:"adjusters"`
	SnapshotTimestamp *time.Time       `json:"snapshot_timestamp,omitempty"`
}

// DecodeDocument reads a Document from r.
func DecodeDocument(r io.Reader) (*Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return &doc, nil
}

// Input builds the engine input. A missing timestamp uses now.
func (d *Document) Input(now time.Time) (Input, error) {
	adjusters, err := d.Adjusters.Build()
	if err != nil {
		return Input{}, err
	}
	ts := now
	if d.SnapshotTimestamp != nil {
		ts = *d.SnapshotTimestamp
	}
	return Input{
		CompetitorData:    d.CompetitorData,
		ClientUnit:        d.ClientUnit,
		Adjusters:         adjusters,
		SnapshotTimestamp: ts,
	}, nil
}

// Columns returns the distinct column names present in the document's rows.
func (d *Document) Columns() []string {
	return Columns(d.CompetitorData)
}

// Columns returns the distinct column names across rows, sorted.
func Columns(rows []model.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for k := range r {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
