package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the feedback pipeline counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	triageDecisions    *prometheus.CounterVec
	classifierVerdicts *prometheus.CounterVec
	judgeDuration      prometheus.Histogram
	labTransitions     *prometheus.CounterVec
	agedItems          prometheus.Counter
	learningRuns       *prometheus.CounterVec

	collectors []prometheus.Collector
}

// NewMetrics creates the counters and registers them on registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		triageDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_triage_decisions_total",
				Help: "Triage routing decisions by resulting status",
			},
			[]string{"status"},
		),
		classifierVerdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_classifier_verdicts_total",
				Help: "Actionability verdicts by source (rule, llm, fallback)",
			},
			[]string{"source", "actionable"},
		),
		judgeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "feedback_judge_duration_seconds",
				Help:    "Time spent waiting for the semantic judge",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		labTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_lab_transitions_total",
				Help: "Refinement lab transitions by action",
			},
			[]string{"action"},
		),
		agedItems: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "feedback_lab_aged_items_total",
				Help: "Lab items moved to skipped by aging",
			},
		),
		learningRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "feedback_learning_runs_total",
				Help: "Learning corpus aggregation runs by result",
			},
			[]string{"result"},
		),
	}
	m.collectors = []prometheus.Collector{
		m.triageDecisions, m.classifierVerdicts, m.judgeDuration,
		m.labTransitions, m.agedItems, m.learningRuns,
	}

	for _, c := range m.collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordTriage(status string) {
	if m == nil {
		return
	}
	m.triageDecisions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordVerdict(source string, actionable bool) {
	if m == nil {
		return
	}
	label := "false"
	if actionable {
		label = "true"
	}
	m.classifierVerdicts.WithLabelValues(source, label).Inc()
}

func (m *Metrics) ObserveJudge(seconds float64) {
	if m == nil {
		return
	}
	m.judgeDuration.Observe(seconds)
}

func (m *Metrics) RecordLabTransition(action string) {
	if m == nil {
		return
	}
	m.labTransitions.WithLabelValues(action).Inc()
}

func (m *Metrics) RecordAged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.agedItems.Add(float64(n))
}

func (m *Metrics) RecordLearningRun(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.learningRuns.WithLabelValues(result).Inc()
}
