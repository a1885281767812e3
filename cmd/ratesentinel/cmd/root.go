// Package cmd provides the CLI commands for ratesentinel.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"RateSentinel/internal/collector"
	"RateSentinel/internal/config"
	"RateSentinel/internal/logging"
)

// Version is set at build time with -ldflags "-X RateSentinel/cmd/ratesentinel/cmd.Version=...".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ratesentinel",
	Short: "Recommend self-storage rental rates from competitor data",
	Long: `ratesentinel runs configurable pricing pipelines over competitor rate
snapshots: a competitive base price, then occupancy and calendar multipliers.

Examples:
  ratesentinel calculate --input request.json
  ratesentinel calculate --pipeline downtown-10x10
  ratesentinel validate --pipeline downtown-10x10
  ratesentinel run --run-on-start`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogging()
	},
}

// flushLogs runs after every command. cobra skips post-run hooks when a
// command fails, so Execute calls it directly.
var flushLogs = logging.Sync

// Execute runs the CLI
func Execute() error {
	defer flushLogs()
	return rootCmd.Execute()
}

func init() {
	defaultCfg := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultCfg = v
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", defaultCfg, "config file (env CONFIG_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

var loadedCfg *config.Config

// loadConfig reads the config file once. A missing file yields defaults.
func loadConfig() (*config.Config, error) {
	if loadedCfg != nil {
		return loadedCfg, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	loadedCfg = cfg
	return cfg, nil
}

func initLogging() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	lc := cfg.Logging
	if verbose {
		lc.Level = "debug"
	}
	if err := logging.Initialize(lc); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
	logging.L().Debug("config loaded", zap.String("path", cfgFile), zap.Int("pipelines", len(cfg.Pipelines)))
	return nil
}

// newFetcher builds the backend fetcher from config.
func newFetcher(cfg *config.Config) collector.Fetcher {
	return collector.NewRESTFetcher(cfg.Backend.BaseURL, cfg.Backend.APIKey, cfg.Proxy, cfg.Backend.Timeout)
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "ratesentinel version %s\n", Version)
	},
}

func envTrue(key string) bool {
	return os.Getenv(key) == "true"
}
