package collector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshots/latest", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"id": 17, "date": "2024-01-05"}`))
	})
	mux.HandleFunc("/api/snapshots/17/rows", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("location") != "downtown" {
			w.Write([]byte(`[]`))
			return
		}
		w.Write([]byte(`[
			{"competitor_name": "A", "monthly_rate_web": 100, "climate": true},
			{"competitor_name": "modSTORAGE", "monthly_rate_web": "n/a"}
		]`))
	})
	mux.HandleFunc("/api/snapshots/17/client-unit", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"available_units": 12}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRESTFetcher(t *testing.T) {
	srv := newBackend(t)
	f := NewRESTFetcher(srv.URL, "secret", "", time.Second)
	ctx := context.Background()

	snap, err := f.FetchLatestSnapshot(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if snap.ID != "17" || snap.Date.Weekday() != time.Friday {
		t.Errorf("unexpected snapshot %+v", snap)
	}

	rows, err := f.FetchRows(ctx, snap.ID, map[string]string{"location": "downtown"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if p, ok := rows[0]["monthly_rate_web"].Float(); !ok || p != 100 {
		t.Errorf("expected numeric price, got %v", rows[0]["monthly_rate_web"])
	}
	if _, ok := rows[1]["monthly_rate_web"].Float(); ok {
		t.Error("string cell should not read as a number")
	}
	if !rows[1].IsClient() {
		t.Error("expected second row to be the client")
	}

	cu, err := f.FetchClientUnit(ctx, snap.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if cu.AvailableUnits == nil || *cu.AvailableUnits != 12 {
		t.Errorf("unexpected client unit %+v", cu)
	}
}

func TestRESTFetcher_Errors(t *testing.T) {
	srv := newBackend(t)
	ctx := context.Background()

	if _, err := NewRESTFetcher(srv.URL, "wrong", "", time.Second).FetchLatestSnapshot(ctx); err == nil {
		t.Error("expected unauthorized error")
	}
	_, err := NewRESTFetcher(srv.URL, "secret", "", time.Second).FetchRows(ctx, "99", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-01-05", "2024-01-05T10:00:00Z"} {
		d, err := parseDate(s)
		if err != nil {
			t.Errorf("%s: %v", s, err)
			continue
		}
		if d.Day() != 5 {
			t.Errorf("%s: got %v", s, d)
		}
	}
	if _, err := parseDate("last friday"); err == nil {
		t.Error("expected parse error")
	}
}
