package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"RateSentinel/internal/model"
)

// ErrNotFound is returned when the backend has no such snapshot.
var ErrNotFound = errors.New("snapshot not found")

// RESTFetcher implements Fetcher against the pricing backend's JSON API.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, timeout time.Duration) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restSnapshot is the expected JSON shape of a snapshot header.
type restSnapshot struct {
	ID   snapshotID `json:"id"`
	Date string     `json:"date"`
}

// snapshotID accepts both numeric and string ids.
type snapshotID string

func (s *snapshotID) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = snapshotID(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}
	*s = snapshotID(n.String())
	return nil
}

func (f *RESTFetcher) FetchLatestSnapshot(ctx context.Context) (model.Snapshot, error) {
	var rs restSnapshot
	if err := f.get(ctx, "/api/snapshots/latest", nil, &rs); err != nil {
		return model.Snapshot{}, fmt.Errorf("fetch latest snapshot: %w", err)
	}
	snap := model.Snapshot{ID: string(rs.ID)}
	if rs.Date != "" {
		d, err := parseDate(rs.Date)
		if err != nil {
			return model.Snapshot{}, fmt.Errorf("snapshot %s: %w", snap.ID, err)
		}
		snap.Date = d
	}
	return snap, nil
}

func (f *RESTFetcher) FetchRows(ctx context.Context, snapshotID string, filters map[string]string) ([]model.Row, error) {
	var rows []model.Row
	path := "/api/snapshots/" + url.PathEscape(snapshotID) + "/rows"
	if err := f.get(ctx, path, filters, &rows); err != nil {
		return nil, fmt.Errorf("fetch rows: %w", err)
	}
	return rows, nil
}

func (f *RESTFetcher) FetchClientUnit(ctx context.Context, snapshotID string, filters map[string]string) (model.ClientUnit, error) {
	var cu model.ClientUnit
	path := "/api/snapshots/" + url.PathEscape(snapshotID) + "/client-unit"
	if err := f.get(ctx, path, filters, &cu); err != nil {
		return model.ClientUnit{}, fmt.Errorf("fetch client unit: %w", err)
	}
	return cu, nil
}

func (f *RESTFetcher) get(ctx context.Context, path string, query map[string]string, out any) error {
	endpoint := f.BaseURL + path
	if len(query) > 0 {
		q := url.Values{}
		for k, v := range query {
			q.Set(k, v)
		}
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseDate accepts RFC 3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse snapshot date %q: %w", s, err)
	}
	return t, nil
}
