package main

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubWorkflow struct {
	executions atomic.Int32
	statsCalls atomic.Int32
	started    chan struct{}
	release    chan struct{}
	panicWith  string
}

func (w *stubWorkflow) Execute(ctx context.Context, cfg WorkflowConfig, trigger string) WorkflowRunResult {
	w.executions.Add(1)
	if w.started != nil {
		w.started <- struct{}{}
	}
	if w.release != nil {
		<-w.release
	}
	if w.panicWith != "" {
		panic(w.panicWith)
	}
	return WorkflowRunResult{Success: true, ArticlesGenerated: 1, Errors: []string{}}
}

func (w *stubWorkflow) Stats(ctx context.Context) (WorkflowStats, error) {
	w.statsCalls.Add(1)
	return WorkflowStats{TotalArticles: 4, PopularTags: []string{"AI"}}, nil
}

func TestSchedulerSingleFlight(t *testing.T) {
	wf := &stubWorkflow{started: make(chan struct{}, 1), release: make(chan struct{})}
	guard := &RunGuard{}
	s := NewTrendScheduler(wf, guard, SchedulerOptions{Config: ScheduledWorkflowConfig()})

	var wg sync.WaitGroup
	wg.Add(1)
	var firstRan bool
	go func() {
		defer wg.Done()
		_, firstRan = s.RunContentGeneration(context.Background())
	}()
	<-wf.started
	assert.True(t, guard.Running())

	_, ran := s.RunContentGeneration(context.Background())
	assert.False(t, ran, "overlapping trigger must be dropped")

	close(wf.release)
	wg.Wait()
	assert.True(t, firstRan)
	assert.EqualValues(t, 1, wf.executions.Load())
	assert.False(t, guard.Running())

	wf.started = nil
	_, ran = s.RunContentGeneration(context.Background())
	assert.True(t, ran)
	assert.EqualValues(t, 2, wf.executions.Load())
}

func TestSchedulerReleasesGuardAfterPanic(t *testing.T) {
	wf := &stubWorkflow{panicWith: "boom"}
	guard := &RunGuard{}
	s := NewTrendScheduler(wf, guard, SchedulerOptions{})

	_, ran := s.RunContentGeneration(context.Background())
	assert.True(t, ran)
	assert.False(t, guard.Running())

	wf.panicWith = ""
	result, ran := s.RunContentGeneration(context.Background())
	assert.True(t, ran)
	assert.True(t, result.Success)
}

func TestDailyReportIgnoresRunGuard(t *testing.T) {
	wf := &stubWorkflow{}
	guard := &RunGuard{}
	require.True(t, guard.TryAcquire())
	s := NewTrendScheduler(wf, guard, SchedulerOptions{})

	stats, err := s.RunDailyReport(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.TotalArticles)
	assert.EqualValues(t, 1, wf.statsCalls.Load())
	assert.True(t, guard.Running())
}

func TestSchedulerTicksAndStops(t *testing.T) {
	wf := &stubWorkflow{}
	s := NewTrendScheduler(wf, &RunGuard{}, SchedulerOptions{Interval: 20 * time.Millisecond})
	s.Start()
	assert.Eventually(t, func() bool { return wf.executions.Load() >= 2 }, time.Second, 10*time.Millisecond)
	s.Stop()
	s.Stop()
}

func TestNextReportTime(t *testing.T) {
	loc := time.UTC
	before := time.Date(2026, 10, 14, 8, 30, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 10, 14, 9, 0, 0, 0, loc), nextReportTime(before, 9))

	after := time.Date(2026, 10, 14, 9, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2026, 10, 15, 9, 0, 0, 0, loc), nextReportTime(after, 9))
}
