package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"RateSentinel/internal/adjuster"
	"RateSentinel/internal/collector"
	"RateSentinel/internal/logging"
	"RateSentinel/internal/model"
	"RateSentinel/internal/pipeline"
	"RateSentinel/internal/recorder"
)

var (
	inputFile    string
	pipelineName string
	outputFormat string
)

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Calculate a recommended price once",
	Long: `Run one pipeline and print the recommended price with any warnings.

The pipeline comes either from a JSON request document (competitor_data,
client_unit, adjusters, snapshot_timestamp) or from a configured pipeline
whose data is fetched from the backend.

Examples:
  ratesentinel calculate --input request.json
  ratesentinel calculate --input - < request.json
  ratesentinel calculate --pipeline downtown-10x10 --format json`,
	Args: cobra.NoArgs,
	RunE: runCalculate,
}

func init() {
	calculateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "request document (JSON, - for stdin)")
	calculateCmd.Flags().StringVarP(&pipelineName, "pipeline", "p", "", "configured pipeline name")
	calculateCmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "output format (text, json)")
	calculateCmd.MarkFlagsMutuallyExclusive("input", "pipeline")
	calculateCmd.MarkFlagsOneRequired("input", "pipeline")
}

// calculation is the json output shape of calculate.
type calculation struct {
	Pipeline string   `json:"pipeline,omitempty"`
	Snapshot string   `json:"snapshot,omitempty"`
	Price    string   `json:"price,omitempty"`
	Warnings []string `json:"warnings"`
	Error    string   `json:"error,omitempty"`
}

func runCalculate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tgt, err := loadInput(ctx)
	if err != nil {
		return err
	}

	eng := pipeline.NewEngine(logging.Named("engine"), nil)
	res, calcErr := eng.Run(tgt.name, tgt.in)

	out := calculation{Pipeline: tgt.name, Snapshot: tgt.snapshot, Warnings: res.Warnings}
	if calcErr == nil {
		out.Price = recorder.RoundPrice(res.Price).StringFixed(2)
	} else {
		out.Error = calcErr.Error()
	}

	w := cmd.OutOrStdout()
	if outputFormat == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		printCalculation(w, out, tgt.in, calcErr)
	}
	if calcErr != nil {
		return fmt.Errorf("calculation failed: %w", calcErr)
	}
	return nil
}

// target is the engine input plus where it came from.
type target struct {
	name     string
	snapshot string
	in       pipeline.Input
}

// loadInput builds engine input from --input or --pipeline.
func loadInput(ctx context.Context) (*target, error) {
	if inputFile != "" {
		doc, err := readDocument(inputFile)
		if err != nil {
			return nil, err
		}
		in, err := doc.Input(time.Now())
		if err != nil {
			return nil, err
		}
		return &target{name: "input", in: in}, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	p, ok := cfg.Pipeline(pipelineName)
	if !ok {
		return nil, fmt.Errorf("unknown pipeline %q", pipelineName)
	}
	col, err := collector.NewCollector(newFetcher(cfg)).Collect(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", p.Name, err)
	}
	return &target{name: p.Name, snapshot: col.Snapshot.ID, in: col.Input}, nil
}

func readDocument(path string) (*pipeline.Document, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		r = f
	}
	return pipeline.DecodeDocument(r)
}

func printCalculation(w io.Writer, out calculation, in pipeline.Input, calcErr error) {
	switch {
	case calcErr == nil:
		fmt.Fprintf(w, "Recommended price: $%s\n", out.Price)
	case pipeline.IsNoPriceData(calcErr):
		fmt.Fprintf(w, "No price data: %v\n", calcErr)
		rep := adjuster.PriceDiagnostics(in.CompetitorData, competitiveChain(in.Adjusters))
		fmt.Fprintf(w, "  rows: %d total, %d client, %d competitor, %d priced\n",
			rep.TotalRows, rep.ClientRows, rep.CompetitorRows, rep.PricedRows)
	default:
		fmt.Fprintf(w, "Calculation failed: %v\n", calcErr)
	}
	if len(out.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range out.Warnings {
			fmt.Fprintf(w, "  - %s\n", warn)
		}
	}
}

func competitiveChain(adjusters []model.Adjuster) []string {
	for _, a := range adjusters {
		if c, ok := a.(model.CompetitiveAdjuster); ok {
			return c.PriceColumns
		}
	}
	return nil
}
