package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const request = `{
  "competitor_data": [
    {"competitor_name": "A", "monthly_rate_web": 100},
    {"competitor_name": "B", "monthly_rate_online": 95},
    {"competitor_name": "modSTORAGE", "monthly_rate_web": 10}
  ],
  "client_unit": {"available_units": 20},
  "adjusters": [
    {"type": "competitive", "price_columns": ["monthly_rate_web", "monthly_rate_online"], "aggregation": "min", "multiplier": 0.97},
    {"type": "temporal", "granularity": "weekly", "multipliers": [1, 1, 1, 1, 2, 1, 1]}
  ],
  "snapshot_timestamp": "2024-01-05T10:00:00Z"
}`

func prepare(t *testing.T, args ...string) *bytes.Buffer {
	t.Helper()
	inputFile, pipelineName, outputFormat = "", "", "text"
	loadedCfg = nil
	cfgFile = filepath.Join(t.TempDir(), "absent.yaml")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--config", cfgFile))
	return &out
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := prepare(t, args...)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.json")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCalculate_Input(t *testing.T) {
	out, err := execute(t, "calculate", "--input", writeFile(t, request))
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	// min(100, 95) * 0.97 * 2 (Friday)
	if !strings.Contains(out, "Recommended price: $184.30") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCalculate_JSON(t *testing.T) {
	out, err := execute(t, "calculate", "--input", writeFile(t, request), "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var got calculation
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid json %q: %v", out, err)
	}
	if got.Price != "184.30" || got.Error != "" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestCalculate_NoPriceData(t *testing.T) {
	body := `{"competitor_data": [{"competitor_name": "modSTORAGE", "monthly_rate_web": 10}],
		"adjusters": [{"type": "competitive", "aggregation": "avg"}]}`
	out, err := execute(t, "calculate", "--input", writeFile(t, body))
	if err == nil {
		t.Fatal("expected non-zero exit")
	}
	if !strings.Contains(out, "No price data") || !strings.Contains(out, "1 client") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCalculate_RequiresSource(t *testing.T) {
	if _, err := execute(t, "calculate"); err == nil {
		t.Error("expected error without --input or --pipeline")
	}
}

func TestValidate_Input(t *testing.T) {
	out, err := execute(t, "validate", "--input", writeFile(t, request))
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Pipeline is valid.") {
		t.Errorf("unexpected output %q", out)
	}

	bad := `{"adjusters": [{"type": "temporal", "granularity": "weekly", "multipliers": [1, 1, 1, 1, 1, 1, 1]}]}`
	out, err = execute(t, "validate", "--input", writeFile(t, bad))
	if err == nil {
		t.Fatal("expected invalid pipeline to fail")
	}
	if !strings.Contains(out, "competitive adjuster") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ratesentinel version") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestExecute_FlushesLogsOnFailure(t *testing.T) {
	flushed := 0
	orig := flushLogs
	flushLogs = func() { flushed++ }
	t.Cleanup(func() { flushLogs = orig })

	prepare(t, "calculate")
	if err := Execute(); err == nil {
		t.Fatal("expected calculate without a source to fail")
	}
	if flushed != 1 {
		t.Errorf("expected logs flushed once, got %d", flushed)
	}
}
