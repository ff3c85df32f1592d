package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Run lifecycle metrics
	RunsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "run",
			Name:      "started_total",
			Help:      "Total number of agent runs started",
		},
		[]string{"kind"}, // submit, retry, resume
	)

	RunsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "run",
			Name:      "completed_total",
			Help:      "Total number of agent runs that completed",
		},
	)

	RunsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "run",
			Name:      "failed_total",
			Help:      "Total number of agent runs that ended in error",
		},
	)

	ActivePolls = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "parley",
			Subsystem: "poll",
			Name:      "active",
			Help:      "Number of active polling loops (0 or 1 per orchestrator)",
		},
	)

	// Poll metrics
	PollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "poll",
			Name:      "ticks_total",
			Help:      "Total poll ticks by result",
		},
		[]string{"result"}, // ok, error, stale
	)

	PollLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "poll",
			Name:      "latency_seconds",
			Help:      "Log fetch latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
	)

	// Approval metrics
	ApprovalsRequested = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "approval",
			Name:      "requested_total",
			Help:      "Total approval checkpoints surfaced to the user",
		},
	)

	ApprovalsDecided = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "approval",
			Name:      "decided_total",
			Help:      "Total approval decisions by kind",
		},
		[]string{"decision"},
	)

	DuplicateApprovalsSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "approval",
			Name:      "duplicates_suppressed_total",
			Help:      "Paused-for-approval snapshots ignored because the checkpoint was already surfaced",
		},
	)
)
