package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"RateSentinel/internal/adjuster"
	"RateSentinel/internal/config"
	"RateSentinel/internal/model"
	"RateSentinel/internal/recorder"
)

func newTestNotifier(srv *httptest.Server) *TelegramNotifier {
	n := NewTelegramNotifier("TOKEN", "42", "", nil)
	n.APIBase = srv.URL
	n.Backoff = time.Millisecond
	return n
}

func TestSend(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/botTOKEN/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	if err := newTestNotifier(srv).Send(context.Background(), "<b>hi</b>"); err != nil {
		t.Fatal(err)
	}
	if got["chat_id"] != "42" || got["parse_mode"] != "HTML" || got["text"] != "<b>hi</b>" {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestSendWithRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	n := newTestNotifier(srv)
	if err := n.SendWithRetry(context.Background(), "x", 3); err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	atomic.StoreInt32(&calls, -100)
	if err := n.SendWithRetry(context.Background(), "x", 1); err == nil || !strings.Contains(err.Error(), "2 retries") {
		t.Errorf("expected exhausted error, got %v", err)
	}
}

func TestStartPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	replies := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/getUpdates"):
			if r.URL.Query().Get("offset") == "0" {
				w.Write([]byte(`{"ok":true,"result":[{"update_id":5,"message":{"text":" /pipelines "}}]}`))
				return
			}
			<-r.Context().Done()
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			var p map[string]string
			json.NewDecoder(r.Body).Decode(&p)
			replies <- p["text"]
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	n := newTestNotifier(srv)
	done := make(chan struct{})
	go func() {
		n.StartPolling(ctx, func(_ context.Context, cmd string) string { return "got " + cmd })
		close(done)
	}()

	select {
	case reply := <-replies:
		if reply != "got /pipelines" {
			t.Errorf("unexpected reply %q", reply)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling did not stop")
	}
}

func TestFormatPriceReport(t *testing.T) {
	snap := model.Snapshot{ID: "7", Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)}
	msg := FormatPriceReport("downtown", snap, 3, model.CalculationResult{Price: 91.2285, Warnings: []string{"step 2: x < 0"}})
	for _, want := range []string{"downtown", "2024-01-05", "$91.23", "x &lt; 0"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestFormatFailure(t *testing.T) {
	rep := adjuster.PriceDiagnostics([]model.Row{{"competitor_name": model.String("A")}}, nil)
	noData := FormatFailure("downtown", fmt.Errorf("step 1: %w", adjuster.ErrNoPrices), &rep)
	if !strings.Contains(noData, "no price data") || !strings.Contains(noData, "1 competitor") {
		t.Errorf("unexpected no-data message %q", noData)
	}

	other := FormatFailure("downtown", errors.New("final price is not positive"), nil)
	if !strings.Contains(other, "calculation failed") || strings.Contains(other, "no price data") {
		t.Errorf("unexpected failure message %q", other)
	}
}

func TestFormatValidationAndLists(t *testing.T) {
	res := model.Invalid("e1")
	res.AddWarning("w1")
	msg := FormatValidation("downtown", res)
	if !strings.Contains(msg, "invalid") || !strings.Contains(msg, "e1") || !strings.Contains(msg, "w1") {
		t.Errorf("unexpected validation message %q", msg)
	}

	many := make([]string, maxListed+3)
	for i := range many {
		many[i] = fmt.Sprintf("w%d", i)
	}
	if msg := FormatValidation("x", model.ValidationResult{Valid: true, Warnings: many}); !strings.Contains(msg, "and 3 more") {
		t.Errorf("expected truncation, got %q", msg)
	}

	list := FormatPipelineList([]config.PipelineConfig{{Name: "a", Filters: map[string]string{"z": "1", "b": "2"}}})
	if !strings.Contains(list, "[b=2, z=1]") {
		t.Errorf("expected sorted filters, got %q", list)
	}
}

func TestFormatHistory(t *testing.T) {
	ok := recorder.NewRun("downtown", "7", 3, model.CalculationResult{Price: 92.15}, nil)
	failed := recorder.NewRun("downtown", "8", 0, model.CalculationResult{}, errors.New("boom"))
	msg := FormatHistory("downtown", []recorder.Run{*ok, *failed})
	if !strings.Contains(msg, "$92.15") || !strings.Contains(msg, "failed: boom") {
		t.Errorf("unexpected history %q", msg)
	}
	if !strings.Contains(FormatHistory("x", nil), "No recorded runs") {
		t.Error("expected empty history message")
	}
}
