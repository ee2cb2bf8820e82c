package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the scheduling engine collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Transitions           *prometheus.CounterVec
	SlotsCreated          prometheus.Counter
	AvailabilityConflicts prometheus.Counter
	ConsistencyWarnings   *prometheus.CounterVec
	LockContention        prometheus.Counter
	OperationLatency      *prometheus.HistogramVec
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in
// tests so repeated construction does not collide.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "transitions_total",
			Help:      "Appointment status transitions by target status",
		}, []string{"status"}),
		SlotsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "slots_created_total",
			Help:      "Availability slots written after decomposition",
		}),
		AvailabilityConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "availability",
			Name:      "conflicts_total",
			Help:      "Availability submissions rejected for overlapping an existing slot",
		}),
		ConsistencyWarnings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "consistency_warnings_total",
			Help:      "Slot/appointment pairs found out of sync",
		}, []string{"source"}),
		LockContention: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "lock_contention_total",
			Help:      "Mutations rejected because the doctor lock was held",
		}),
		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduling",
			Name:      "operation_duration_seconds",
			Help:      "Duration of scheduling façade operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) Transition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) SlotsWritten(n int) {
	if m == nil {
		return
	}
	m.SlotsCreated.Add(float64(n))
}

func (m *Metrics) Conflict() {
	if m == nil {
		return
	}
	m.AvailabilityConflicts.Inc()
}

func (m *Metrics) Inconsistent(source string) {
	if m == nil {
		return
	}
	m.ConsistencyWarnings.WithLabelValues(source).Inc()
}

func (m *Metrics) Contended() {
	if m == nil {
		return
	}
	m.LockContention.Inc()
}

func (m *Metrics) Observe(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
