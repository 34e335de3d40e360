// Package metrics exposes Prometheus counters for the capture and analysis pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SignalsCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errlens_signals_captured_total",
		Help: "Raw signals emitted by capture hooks, labelled by hook.",
	}, []string{"hook"})

	ThrottleDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errlens_throttle_decisions_total",
		Help: "Front-line throttle outcomes, labelled by decision.",
	}, []string{"decision"})

	TransportFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "errlens_transport_failures_total",
		Help: "Events the page could not hand to ingestion.",
	})

	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errlens_events_ingested_total",
		Help: "Events accepted by ingestion, labelled by event type.",
	}, []string{"type"})

	EventsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "errlens_events_duplicate_total",
		Help: "Envelopes rejected because their id was already in the working set.",
	})

	EventsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "errlens_events_evicted_total",
		Help: "Events rotated out of the bounded log.",
	})

	AnalysisOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errlens_analysis_outcomes_total",
		Help: "Finished analysis calls, labelled by status (completed, failed, stale).",
	}, []string{"status"})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "errlens_analysis_duration_ms",
		Help:    "External analysis call latency in milliseconds.",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	AnalysisQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "errlens_analysis_queue_depth",
		Help: "Events waiting for analysis.",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "errlens_notifications_dropped_total",
		Help: "Notifications not delivered to a slow subscriber.",
	})
)
