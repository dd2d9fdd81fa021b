// Package metrics exports leasekeeper counters in Prometheus format.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adslot/leasekeeper/pkg/model"
)

const namespace = "leasekeeper"

// Registry holds all leasekeeper metrics on a private prometheus registry.
// It is also an event sink: every emitted lifecycle event bumps a counter.
type Registry struct {
	reg *prometheus.Registry

	events       *prometheus.CounterVec
	outcomes     *prometheus.CounterVec
	attempts     *prometheus.CounterVec
	epochsAdded  prometheus.Counter
	confirmWait  *prometheus.HistogramVec
	bytesWritten prometheus.Counter
}

// NewRegistry creates a registry with every collector registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Lifecycle events emitted, by type",
		}, []string{"type"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_outcomes_total",
			Help:      "Terminal outcomes of ledger-mutating operations",
		}, []string{"operation", "outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirm_attempts_total",
			Help:      "Confirmation poll attempts, by operation",
		}, []string{"operation"}),
		epochsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_epochs_added_total",
			Help:      "Storage epochs bought by extensions",
		}),
		confirmWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirm_wait_seconds",
			Help:      "Time spent waiting for a transaction to become visible",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60},
		}, []string{"operation"}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_bytes_uploaded_total",
			Help:      "Bytes written to the storage network",
		}),
	}
	r.reg.MustRegister(r.events, r.outcomes, r.attempts, r.epochsAdded, r.confirmWait, r.bytesWritten)
	return r
}

// Emit records an event. Terminal events also count as operation outcomes.
func (r *Registry) Emit(e model.Event) {
	r.events.WithLabelValues(string(e.Type)).Inc()

	op, outcome, ok := strings.Cut(string(e.Type), ".")
	if !ok {
		return
	}
	if w, ok := e.Details["waited_seconds"].(float64); ok {
		r.ObserveConfirmWait(op, w)
	}
	switch e.Type {
	case model.EventConfirmAttempt:
		if name, _ := e.Details["operation"].(string); name != "" {
			r.attempts.WithLabelValues(name).Inc()
		}
	case model.EventStorageExtended:
		r.outcomes.WithLabelValues(op, outcome).Inc()
		if n, ok := e.Details["epochs_added"].(uint64); ok {
			r.epochsAdded.Add(float64(n))
		}
	case model.EventStorageUploaded:
		r.outcomes.WithLabelValues(op, outcome).Inc()
		if n, ok := e.Details["bytes"].(int); ok {
			r.bytesWritten.Add(float64(n))
		}
	case model.EventRenewalState:
	default:
		r.outcomes.WithLabelValues(op, outcome).Inc()
	}
}

// ObserveConfirmWait records how long a confirmation took.
func (r *Registry) ObserveConfirmWait(operation string, seconds float64) {
	r.confirmWait.WithLabelValues(operation).Observe(seconds)
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
