package scheduler

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"RateSentinel/internal/adjuster"
	"RateSentinel/internal/collector"
	"RateSentinel/internal/config"
	"RateSentinel/internal/model"
	"RateSentinel/internal/notifier"
	"RateSentinel/internal/pipeline"
	"RateSentinel/internal/recorder"
)

// historyLimit is how many runs /history shows.
const historyLimit = 10

// Sender delivers report messages. *notifier.TelegramNotifier satisfies it.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler manages recalculation cron tasks and bot commands.
type Scheduler struct {
	Cron       *cron.Cron
	Collector  *collector.Collector
	Engine     *pipeline.Engine
	Notifier   Sender // nil disables notifications
	Recorder   recorder.Recorder
	Pipelines  []config.PipelineConfig
	RetainDays int
	Ctx        context.Context

	log *zap.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, col *collector.Collector, eng *pipeline.Engine, sender Sender, rec recorder.Recorder, pipelines []config.PipelineConfig, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		Cron:       cron.New(cron.WithSeconds()),
		Collector:  col,
		Engine:     eng,
		Notifier:   sender,
		Recorder:   rec,
		Pipelines:  pipelines,
		RetainDays: 90,
		Ctx:        ctx,
		log:        log,
	}
}

// RegisterAll registers the recalculation task and the history prune.
func (s *Scheduler) RegisterAll(recalcCron, pruneCron string) error {
	if _, err := s.Cron.AddFunc(recalcCron, s.RunAllNow); err != nil {
		return fmt.Errorf("register recalc task: %w", err)
	}
	if _, err := s.Cron.AddFunc(pruneCron, s.pruneTask); err != nil {
		return fmt.Errorf("register prune task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info("scheduler started", zap.Int("pipelines", len(s.Pipelines)))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// RunAllNow recalculates every configured pipeline and sends one report each.
func (s *Scheduler) RunAllNow() {
	s.log.Info("running recalculation", zap.Int("pipelines", len(s.Pipelines)))
	for _, p := range s.Pipelines {
		if s.Ctx.Err() != nil {
			return
		}
		s.trySend(s.RunPipeline(s.Ctx, p))
	}
}

// RunPipeline collects, calculates, and records one pipeline, returning the report text.
func (s *Scheduler) RunPipeline(ctx context.Context, p config.PipelineConfig) string {
	col, err := s.Collector.Collect(ctx, p)
	if err != nil {
		s.log.Error("collect failed", zap.String("pipeline", p.Name), zap.Error(err))
		s.record(recorder.NewRun(p.Name, p.SnapshotID, 0, model.CalculationResult{}, err))
		return fmt.Sprintf("❌ <b>%s</b>: data collection failed\n\n%s", html.EscapeString(p.Name), html.EscapeString(err.Error()))
	}

	in := col.Input
	res, err := s.Engine.Run(p.Name, in)
	s.record(recorder.NewRun(p.Name, col.Snapshot.ID, len(in.CompetitorData), res, err))
	if err != nil {
		var report *adjuster.PriceReport
		if pipeline.IsNoPriceData(err) {
			rep := adjuster.PriceDiagnostics(in.CompetitorData, firstChain(in.Adjusters))
			report = &rep
		}
		return notifier.FormatFailure(p.Name, err, report)
	}
	return notifier.FormatPriceReport(p.Name, col.Snapshot, len(in.CompetitorData), res)
}

func (s *Scheduler) pruneTask() {
	cutoff := time.Now().AddDate(0, 0, -s.RetainDays)
	n, err := s.Recorder.Prune(cutoff)
	if err != nil {
		s.log.Error("prune run history", zap.Error(err))
		return
	}
	s.log.Info("run history pruned", zap.Int64("deleted", n), zap.Int("retain_days", s.RetainDays))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return usage()
	}
	name := strings.Join(fields[1:], " ")

	switch fields[0] {
	case "/pipelines":
		return notifier.FormatPipelineList(s.Pipelines)
	case "/price":
		p, ok := s.lookup(name)
		if !ok {
			return unknownPipeline(name)
		}
		return s.RunPipeline(ctx, p)
	case "/validate":
		p, ok := s.lookup(name)
		if !ok {
			return unknownPipeline(name)
		}
		return notifier.FormatValidation(p.Name, s.Collector.Validate(ctx, p))
	case "/history":
		if _, ok := s.lookup(name); !ok {
			return unknownPipeline(name)
		}
		runs, err := s.Recorder.RecentRuns(name, historyLimit)
		if err != nil {
			s.log.Error("load history", zap.String("pipeline", name), zap.Error(err))
			return "❌ could not load history: " + html.EscapeString(err.Error())
		}
		return notifier.FormatHistory(name, runs)
	default:
		return usage()
	}
}

func (s *Scheduler) lookup(name string) (config.PipelineConfig, bool) {
	for _, p := range s.Pipelines {
		if p.Name == name {
			return p, true
		}
	}
	return config.PipelineConfig{}, false
}

func (s *Scheduler) record(run *recorder.Run) {
	if err := s.Recorder.RecordRun(run); err != nil {
		s.log.Error("record run", zap.String("pipeline", run.Pipeline), zap.Error(err))
	}
}

func (s *Scheduler) trySend(text string) {
	if s.Notifier == nil || text == "" {
		return
	}
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.log.Error("send notification", zap.Error(err))
	}
}

// firstChain returns the price columns of the first competitive step.
func firstChain(adjusters []model.Adjuster) []string {
	for _, a := range adjusters {
		if c, ok := a.(model.CompetitiveAdjuster); ok {
			return c.PriceColumns
		}
	}
	return nil
}

func unknownPipeline(name string) string {
	if name == "" {
		return "Pipeline name required.\n\n" + usage()
	}
	return fmt.Sprintf("Unknown pipeline %s. Use /pipelines to list them.", html.EscapeString(strconv.Quote(name)))
}

func usage() string {
	return "Available commands:\n• /pipelines\n• /price &lt;name&gt;\n• /validate &lt;name&gt;\n• /history &lt;name&gt;"
}
