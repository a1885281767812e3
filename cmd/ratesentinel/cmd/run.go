package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"RateSentinel/internal/collector"
	"RateSentinel/internal/config"
	"RateSentinel/internal/logging"
	"RateSentinel/internal/metrics"
	"RateSentinel/internal/notifier"
	"RateSentinel/internal/pipeline"
	"RateSentinel/internal/recorder"
	"RateSentinel/internal/scheduler"
)

var runOnStart bool

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the recalculation service",
	Long: `Start the long-running service: configured pipelines are recalculated on
the recalc cron, results are recorded and pushed to Telegram, bot commands are
answered, and Prometheus metrics are served when metrics.listen_addr is set.`,
	Args: cobra.NoArgs,
	RunE: runService,
}

func init() {
	runCmd.Flags().BoolVar(&runOnStart, "run-on-start", false, "recalculate every pipeline immediately (env RUN_ON_START=true)")
}

func runService(cmd *cobra.Command, args []string) error {
	log := logging.Named("service")
	log.Info("RateSentinel starting", zap.String("version", Version))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fetcher := newFetcher(cfg)
	log.Info("data source", zap.String("fetcher", fetcher.Name()), zap.String("base_url", cfg.Backend.BaseURL))
	col := collector.NewCollector(fetcher)

	m := metrics.New()
	eng := pipeline.NewEngine(logging.Named("engine"), m)

	rec := openRecorder(cfg, log)
	defer rec.Close()

	var (
		tn     *notifier.TelegramNotifier
		sender scheduler.Sender
	)
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logging.Named("telegram"))
		sender = tn
	} else {
		log.Warn("telegram not configured, notifications disabled")
	}

	sched := scheduler.NewScheduler(ctx, col, eng, sender, rec, cfg.Pipelines, logging.Named("scheduler"))
	sched.RetainDays = cfg.Schedule.RetainDays
	if err := sched.RegisterAll(cfg.Schedule.RecalcCron, cfg.Schedule.PruneCron); err != nil {
		return fmt.Errorf("register cron tasks: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	if cfg.Metrics.ListenAddr != "" {
		srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metricsMux(m), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info("metrics listening", zap.String("addr", cfg.Metrics.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info("telegram polling started")
	}

	if runOnStart || envTrue("RUN_ON_START") {
		log.Info("run-on-start enabled, recalculating now")
		go sched.RunAllNow()
	}

	log.Info("RateSentinel is running, press Ctrl+C to stop", zap.Int("pipelines", len(cfg.Pipelines)))
	<-ctx.Done()
	log.Info("shutdown signal received, stopping")
	return nil
}

// openRecorder opens the SQLite history, falling back to noop when it cannot.
func openRecorder(cfg *config.Config, log *zap.Logger) recorder.Recorder {
	if cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logging.Named("recorder"))
	if err != nil {
		log.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	return sr
}

func metricsMux(m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}
