package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Outbound calls handed to the voice provider
	callsDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "run_calls_dispatched_total",
			Help: "Total number of outbound calls dispatched to the voice provider",
		},
	)

	// Dispatch failures partitioned by reason
	dispatchFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "run_dispatch_failures_total",
			Help: "Total number of row dispatch failures",
		},
		[]string{"reason"},
	)

	// Post-call webhooks partitioned by acknowledgement status
	webhooksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "run_webhooks_processed_total",
			Help: "Total number of post-call webhooks processed",
		},
		[]string{"status"},
	)

	// Runs that reached the completed status
	runsCompletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "runs_completed_total",
			Help: "Total number of runs finalized as completed",
		},
	)

	// Rows failed by the stuck-calling sweep
	stuckRowsSweptTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "run_stuck_rows_swept_total",
			Help: "Total number of calling rows failed by the stuck-row sweep",
		},
	)
)

// Dispatch failure reasons used as metric labels
const (
	dispatchFailureReasonNoPhone  = "no_phone_number"
	dispatchFailureReasonProvider = "provider_error"
	dispatchFailureReasonTimeout  = "callback_timeout"
)
