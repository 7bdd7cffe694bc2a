package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Engine counters, exposed on /metrics via promhttp.
var (
	CallbacksReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callback_engine_callbacks_received_total",
		Help: "Inbound processor notifications received",
	}, []string{"processor"})

	CallbacksRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callback_engine_callbacks_rejected_total",
		Help: "Notifications that did not change payment state, by reason",
	}, []string{"processor", "reason"})

	TransitionsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callback_engine_transitions_applied_total",
		Help: "Applied payment status transitions",
	}, []string{"from_state", "to_state"})

	ReconciliationExhausted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callback_engine_reconciliation_exhausted_total",
		Help: "Reconciliation polls that exhausted their attempt budget",
	}, []string{"processor"})

	CompletionSignals = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callback_engine_completion_signals_total",
		Help: "Fulfillment completion signals sent",
	})
)
