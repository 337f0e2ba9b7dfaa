// Package metrics holds the Prometheus counters of the data-access layer.
//
// All methods are safe to call on a nil *Recorder, which records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "deadpool"

// Score update outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeNotFound = "not_found"
	OutcomeInvalid  = "invalid"
	OutcomeFailed   = "failed"
)

// Recorder owns a registry with the data-access counters.
type Recorder struct {
	registry      *prometheus.Registry
	retryAttempts *prometheus.CounterVec
	recreations   prometheus.Counter
	scoreUpdates  *prometheus.CounterVec
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Attempts repeated after a connection failure, by operation.",
		}, []string{"op"}),
		recreations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pool_recreations_total",
			Help:      "Connection pools rebuilt after repeated connection failures.",
		}),
		scoreUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_updates_total",
			Help:      "Scored-update transactions, by outcome.",
		}, []string{"outcome"}),
	}

	r.registry.MustRegister(r.retryAttempts, r.recreations, r.scoreUpdates)
	return r
}

// Registry returns the registry holding the counters, for exposition.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RetryAttempt counts one retry of operation op.
func (r *Recorder) RetryAttempt(op string) {
	if r == nil {
		return
	}
	r.retryAttempts.WithLabelValues(op).Inc()
}

// PoolRecreated counts one pool rebuild.
func (r *Recorder) PoolRecreated() {
	if r == nil {
		return
	}
	r.recreations.Inc()
}

// ScoreUpdate counts one scored update with the given outcome.
func (r *Recorder) ScoreUpdate(outcome string) {
	if r == nil {
		return
	}
	r.scoreUpdates.WithLabelValues(outcome).Inc()
}
