package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"RateSentinel/internal/adjuster"
	"RateSentinel/internal/config"
	"RateSentinel/internal/model"
	"RateSentinel/internal/pipeline"
	"RateSentinel/internal/recorder"
)

// maxListed caps how many warnings or errors one message shows.
const maxListed = 10

// FormatPriceReport formats a successful calculation into a Telegram message.
func FormatPriceReport(name string, snap model.Snapshot, rowCount int, res model.CalculationResult) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("💲 <b>%s</b> | snapshot %s", html.EscapeString(name), html.EscapeString(snap.ID)))
	if !snap.Date.IsZero() {
		b.WriteString(" (" + snap.Date.Format("2006-01-02") + ")")
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("Recommended price: <b>$%s</b>\n", decimal.NewFromFloat(res.Price).StringFixed(2)))
	b.WriteString(fmt.Sprintf("Rows considered: %d\n", rowCount))
	writeList(&b, "⚠️ Warnings", res.Warnings)
	return b.String()
}

// FormatFailure formats a failed calculation. Missing competitor price data
// gets its own headline and the row diagnostics; other failures are generic.
func FormatFailure(name string, err error, report *adjuster.PriceReport) string {
	var b strings.Builder
	if pipeline.IsNoPriceData(err) {
		b.WriteString(fmt.Sprintf("📭 <b>%s</b>: no price data\n\n", html.EscapeString(name)))
		b.WriteString(html.EscapeString(err.Error()) + "\n")
		if report != nil {
			b.WriteString(fmt.Sprintf("\nRows: %d total, %d client, %d competitor\n",
				report.TotalRows, report.ClientRows, report.CompetitorRows))
			b.WriteString(fmt.Sprintf("Priced rows: %d (%.0f%% coverage, %d competitors)\n",
				report.PricedRows, report.Coverage()*100, report.Competitors))
		}
		return b.String()
	}
	b.WriteString(fmt.Sprintf("❌ <b>%s</b>: calculation failed\n\n", html.EscapeString(name)))
	b.WriteString(html.EscapeString(err.Error()) + "\n")
	return b.String()
}

// FormatValidation formats a validation result.
func FormatValidation(name string, res model.ValidationResult) string {
	var b strings.Builder
	if res.Valid {
		b.WriteString(fmt.Sprintf("✅ <b>%s</b> is valid\n", html.EscapeString(name)))
	} else {
		b.WriteString(fmt.Sprintf("🚫 <b>%s</b> is invalid\n", html.EscapeString(name)))
	}
	writeList(&b, "Errors", res.Errors)
	writeList(&b, "⚠️ Warnings", res.Warnings)
	return b.String()
}

// FormatHistory formats recent runs, newest first.
func FormatHistory(name string, runs []recorder.Run) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🗂 <b>%s</b> history\n\n", html.EscapeString(name)))
	if len(runs) == 0 {
		b.WriteString("No recorded runs.\n")
		return b.String()
	}
	for _, r := range runs {
		ts := r.CreatedAt.Format("2006-01-02 15:04")
		if r.Status == recorder.StatusOK {
			b.WriteString(fmt.Sprintf("%s  $%s", ts, r.Price.StringFixed(2)))
			if n := len(r.Warnings); n > 0 {
				b.WriteString(fmt.Sprintf("  (%d warnings)", n))
			}
			b.WriteString("\n")
			continue
		}
		b.WriteString(fmt.Sprintf("%s  failed: %s\n", ts, html.EscapeString(r.Error)))
	}
	return b.String()
}

// FormatPipelineList lists configured pipelines with their filters.
func FormatPipelineList(pipelines []config.PipelineConfig) string {
	var b strings.Builder
	b.WriteString("📋 <b>Pipelines</b>\n\n")
	if len(pipelines) == 0 {
		b.WriteString("None configured.\n")
		return b.String()
	}
	for _, p := range pipelines {
		b.WriteString(fmt.Sprintf("• <b>%s</b> (%d adjusters)", html.EscapeString(p.Name), len(p.Adjusters)))
		if f := formatFilters(p.Filters); f != "" {
			b.WriteString(" " + html.EscapeString(f))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatFilters(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + filters[k]
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("\n%s:\n", title))
	for i, it := range items {
		if i == maxListed {
			b.WriteString(fmt.Sprintf("  … and %d more\n", len(items)-maxListed))
			break
		}
		b.WriteString("  • " + html.EscapeString(it) + "\n")
	}
}
