package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Recovery lifecycle events counted by RecoveryEvents.
const (
	EventRegistered    = "registered"
	EventInitiated     = "initiated"
	EventApproved      = "approved"
	EventQuorumReached = "quorum_reached"
	EventFinalized     = "finalized"
)

// Metrics holds the Prometheus registry and the guardian service meters.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	RecoveryEvents    *prometheus.CounterVec
	StoreConflicts    prometheus.Counter
}

// NewMetrics creates a private registry with the standard guardian metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "guardian_operation_duration_seconds",
		Help:    "Duration of operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "status"})

	opTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_operation_total",
		Help: "Total number of operations.",
	}, []string{"operation", "status"})

	errorsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_errors_total",
		Help: "Total number of failed operations by error kind.",
	}, []string{"operation", "type"})

	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "guardian_recovery_events_total",
		Help: "Recovery lifecycle transitions.",
	}, []string{"event"})

	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "guardian_store_conflicts_total",
		Help: "Store transactions abandoned after exhausting conflict retries.",
	})

	reg.MustRegister(opDuration, opTotal, errorsTotal, events, conflicts)

	return &Metrics{
		Registry:          reg,
		OperationDuration: opDuration,
		OperationTotal:    opTotal,
		ErrorsTotal:       errorsTotal,
		RecoveryEvents:    events,
		StoreConflicts:    conflicts,
	}
}

// RecordEvent bumps the recovery event counter. Safe on a nil receiver.
func (m *Metrics) RecordEvent(event string) {
	if m == nil {
		return
	}
	m.RecoveryEvents.WithLabelValues(event).Inc()
}

// RecordConflict counts one transaction that gave up on conflicts. Safe on a nil receiver.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.StoreConflicts.Inc()
}
