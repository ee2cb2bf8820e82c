package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("CONFIRMED")
		m.SlotsWritten(3)
		m.Conflict()
		m.Inconsistent("accept")
		m.Contended()
		m.Observe("book", time.Now())
	})
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry(), "test")

	m.Transition("CONFIRMED")
	m.Transition("CONFIRMED")
	m.SlotsWritten(3)
	m.Inconsistent("reconcile")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("CONFIRMED")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SlotsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConsistencyWarnings.WithLabelValues("reconcile")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LockContention))
}
