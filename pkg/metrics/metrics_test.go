package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New("easy-reconcile")

	m.ObserveRun(time.Second, nil)
	m.ObserveRun(time.Second, errors.New("plugin failed"))
	m.ObserveMethodCall("easy.reconcile.simple.name", nil)
	m.ObserveHistory(3, 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RunsTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.MethodCallsTotal.WithLabelValues("easy.reconcile.simple.name", "success")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.ReconciledGroups.WithLabelValues("full")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ReconciledGroups.WithLabelValues("partial")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HistoryEntriesNew))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRun(time.Second, nil)
		m.ObserveMethodCall("x", nil)
		m.ObserveHistory(1, 1)
	})
}
