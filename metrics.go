package main

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the workflow's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	articlesGenerated prometheus.Counter
	topicsSkipped     prometheus.Counter
	topicFailures     *prometheus.CounterVec
	adapterFailures   *prometheus.CounterVec
	workflowRuns      *prometheus.CounterVec
	scheduledSkipped  prometheus.Counter
	runDuration       prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		articlesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendwise_articles_generated_total",
			Help: "Articles synthesized and saved.",
		}),
		topicsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendwise_topics_skipped_total",
			Help: "Topics skipped because an article already exists.",
		}),
		topicFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendwise_topic_failures_total",
			Help: "Per-topic failures by pipeline stage.",
		}, []string{"stage"}),
		adapterFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendwise_adapter_failures_total",
			Help: "External adapter calls that failed, timed out or were short-circuited.",
		}, []string{"adapter"}),
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "trendwise_workflow_runs_total",
			Help: "Workflow runs by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		scheduledSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trendwise_scheduled_runs_skipped_total",
			Help: "Scheduled runs dropped because a run was already in progress.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "trendwise_workflow_run_duration_seconds",
			Help:    "Wall time of one workflow run.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.articlesGenerated, m.topicsSkipped, m.topicFailures,
			m.adapterFailures, m.workflowRuns, m.scheduledSkipped, m.runDuration)
	}
	return m
}

func (m *Metrics) ArticleGenerated() {
	if m != nil {
		m.articlesGenerated.Inc()
	}
}

func (m *Metrics) TopicSkipped() {
	if m != nil {
		m.topicsSkipped.Inc()
	}
}

func (m *Metrics) TopicFailed(stage string) {
	if m != nil {
		m.topicFailures.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) AdapterFailed(adapter string) {
	if m != nil {
		m.adapterFailures.WithLabelValues(adapter).Inc()
	}
}

func (m *Metrics) ScheduledRunSkipped() {
	if m != nil {
		m.scheduledSkipped.Inc()
	}
}

func (m *Metrics) RunFinished(trigger string, result WorkflowRunResult, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if result.Success {
		outcome = "success"
	}
	m.workflowRuns.WithLabelValues(trigger, outcome).Inc()
	m.runDuration.Observe(took.Seconds())
}
