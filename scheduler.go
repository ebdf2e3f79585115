package main

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// RunGuard is the single-flight flag for scheduled content runs. The process entry point
// owns it and hands it to the scheduler.
type RunGuard struct {
	running atomic.Bool
}

// TryAcquire sets the flag and reports whether the caller now owns the run.
func (g *RunGuard) TryAcquire() bool { return g.running.CompareAndSwap(false, true) }

func (g *RunGuard) Release() { g.running.Store(false) }

func (g *RunGuard) Running() bool { return g.running.Load() }

type scheduledWorkflow interface {
	Execute(ctx context.Context, cfg WorkflowConfig, trigger string) WorkflowRunResult
	Stats(ctx context.Context) (WorkflowStats, error)
}

type SchedulerOptions struct {
	Interval   time.Duration
	ReportHour int
	Config     WorkflowConfig
	Metrics    *Metrics
}

type TrendScheduler struct {
	workflow scheduledWorkflow
	guard    *RunGuard
	opts     SchedulerOptions

	ctx      context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewTrendScheduler(workflow scheduledWorkflow, guard *RunGuard, opts SchedulerOptions) *TrendScheduler {
	if opts.Interval <= 0 {
		opts.Interval = 6 * time.Hour
	}
	if opts.ReportHour < 0 || opts.ReportHour > 23 {
		opts.ReportHour = 9
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TrendScheduler{
		workflow: workflow,
		guard:    guard,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		stopChan: make(chan struct{}),
	}
}

func (s *TrendScheduler) Start() {
	s.wg.Add(2)
	// Content generation on a fixed interval
	go s.scheduleContentGeneration()
	// Daily report at the configured hour, local time
	go s.scheduleDailyReport()
	slog.Info("[Scheduler] Started",
		slog.Duration("interval", s.opts.Interval),
		slog.Int("reportHour", s.opts.ReportHour))
}

// Stop ends both loops and cancels any run in progress.
func (s *TrendScheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.cancel()
	})
	s.wg.Wait()
}

func (s *TrendScheduler) scheduleContentGeneration() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Each tick runs on its own goroutine so an overlapping tick reaches the guard.
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.RunContentGeneration(s.ctx)
			}()
		case <-s.stopChan:
			return
		}
	}
}

func (s *TrendScheduler) scheduleDailyReport() {
	defer s.wg.Done()
	for {
		next := nextReportTime(time.Now(), s.opts.ReportHour)
		select {
		case <-time.After(time.Until(next)):
			_, _ = s.RunDailyReport(s.ctx)
		case <-s.stopChan:
			return
		}
	}
}

// RunContentGeneration executes one scheduled run unless another is still in progress, in
// which case it returns immediately with ran=false. The flag is cleared on every exit path.
func (s *TrendScheduler) RunContentGeneration(ctx context.Context) (result WorkflowRunResult, ran bool) {
	if !s.guard.TryAcquire() {
		s.opts.Metrics.ScheduledRunSkipped()
		slog.Warn("[Scheduler] Previous content run still in progress, skipping")
		return WorkflowRunResult{}, false
	}
	defer s.guard.Release()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Scheduler] Content run panicked", slog.Any("panic", r))
		}
	}()

	slog.Info("[Scheduler] Running scheduled content generation")
	result = s.workflow.Execute(ctx, s.opts.Config, TriggerScheduled)
	for _, e := range result.Errors {
		slog.Warn("[Scheduler] Run error", slog.String("error", e))
	}
	slog.Info("[Scheduler] Scheduled run complete",
		slog.Bool("success", result.Success),
		slog.Int("generated", result.ArticlesGenerated))
	return result, true
}

// RunDailyReport logs the statistics report. It is read-only and ignores the run guard.
func (s *TrendScheduler) RunDailyReport(ctx context.Context) (WorkflowStats, error) {
	stats, err := s.workflow.Stats(ctx)
	if err != nil {
		slog.Error("[Scheduler] Error building daily report", slog.Any("error", err))
		return stats, err
	}
	slog.Info("[Scheduler] Daily report",
		slog.Int64("totalArticles", stats.TotalArticles),
		slog.Int64("articlesThisWeek", stats.ArticlesThisWeek),
		slog.Any("popularTags", stats.PopularTags))
	return stats, nil
}

func nextReportTime(now time.Time, hour int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
