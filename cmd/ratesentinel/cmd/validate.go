package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"RateSentinel/internal/collector"
	"RateSentinel/internal/model"
	"RateSentinel/internal/pipeline"
)

var errInvalid = errors.New("pipeline is invalid")

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a pipeline's structure and adjuster configuration",
	Long: `Validate a pipeline before running it. With --input the adjusters are
checked against the columns present in the document's competitor data; with
--pipeline the backend is queried for the current snapshot's columns.

Examples:
  ratesentinel validate --input request.json
  ratesentinel validate --pipeline downtown-10x10`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "request document (JSON, - for stdin)")
	validateCmd.Flags().StringVarP(&pipelineName, "pipeline", "p", "", "configured pipeline name")
	validateCmd.MarkFlagsMutuallyExclusive("input", "pipeline")
	validateCmd.MarkFlagsOneRequired("input", "pipeline")
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	res, err := validateTarget(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if res.Valid {
		fmt.Fprintln(w, "Pipeline is valid.")
	} else {
		fmt.Fprintln(w, "Pipeline is invalid:")
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  ✗ %s\n", e)
		}
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warn)
	}
	if !res.Valid {
		return errInvalid
	}
	return nil
}

func validateTarget(ctx context.Context) (model.ValidationResult, error) {
	if inputFile != "" {
		doc, err := readDocument(inputFile)
		if err != nil {
			return model.ValidationResult{}, err
		}
		adjusters, err := doc.Adjusters.Build()
		if err != nil {
			return model.Invalid(err.Error()), nil
		}
		if len(doc.CompetitorData) == 0 {
			return pipeline.Validate(adjusters), nil
		}
		return pipeline.ValidateWithColumns(adjusters, doc.Columns()), nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return model.ValidationResult{}, err
	}
	p, ok := cfg.Pipeline(pipelineName)
	if !ok {
		return model.ValidationResult{}, fmt.Errorf("unknown pipeline %q", pipelineName)
	}
	if cfg.Backend.BaseURL == "" {
		adjusters, err := p.Adjusters.Build()
		if err != nil {
			return model.Invalid(err.Error()), nil
		}
		res := pipeline.Validate(adjusters)
		res.AddWarning("backend.base_url not set, column checks skipped")
		return res, nil
	}
	return collector.NewCollector(newFetcher(cfg)).Validate(ctx, p), nil
}
