package statemachine

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome constants.
const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

var (
	// transitionsTotal counts committed transitions.
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_transitions_total",
		Help: "Total number of committed transitions by machine, from_state, to_state and message",
	}, []string{"machine", "from_state", "to_state", "message"})

	// sendErrorsTotal counts sends that did not commit, by reason.
	sendErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fsm_send_errors_total",
		Help: "Total number of sends that did not produce a transition, by machine, state and reason",
	}, []string{"machine", "state", "reason"})

	// actionDuration tracks how long target-state actions take to settle.
	actionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsm_action_duration_seconds",
		Help:    "Duration of action execution by machine, state and outcome",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
	}, []string{"machine", "state", "outcome"})

	// queueDepth tracks operations waiting in a serialized machine's queue.
	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fsm_queue_depth",
		Help: "Number of scheduled operations not yet settled, by machine",
	}, []string{"machine"})
)

// errorReason maps a send error to a low-cardinality metric label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownMessage):
		return "unknown_message"
	case errors.Is(err, ErrUnavailableMessage):
		return "unavailable_message"
	case errors.Is(err, ErrNoGuardMatched):
		return "no_guard_matched"
	case errors.Is(err, ErrAmbiguousGuard):
		return "ambiguous_guard"
	case errors.Is(err, ErrActionFailure):
		return "action_failure"
	case errors.Is(err, ErrUninitialized):
		return "uninitialized"
	case errors.Is(err, ErrUnknownCallable):
		return "unknown_callable"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

func sanitizeMachine(name string) string {
	if name == "" {
		return "default"
	}

	return name
}
