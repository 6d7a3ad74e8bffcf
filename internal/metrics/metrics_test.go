package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yegors/flightboard/internal/phase"
)

func TestObserveEvaluation(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveEvaluation(phase.Inbound, phase.Approaching, false)
	c.ObserveEvaluation(phase.Inbound, phase.Approaching, false)
	c.ObserveEvaluation(phase.Outbound, phase.Indeterminate, true)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Evaluations.WithLabelValues("inbound", "APPROACHING")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Evaluations.WithLabelValues("outbound", "INDETERMINATE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.EvaluationFailures))
}

func TestObserveFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveFetch(nil, 120*time.Millisecond)
	c.ObserveFetch(errors.New("unexpected status code: 502"), time.Second)
	c.ObserveFetch(nil, 80*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.Fetches.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.Fetches.WithLabelValues("error")))
	assert.Equal(t, uint64(3), histogramSampleCount(t, reg, "flightboard_fetch_duration_seconds"))
}

func TestSkippedAndTracked(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.Skipped(SkipNoRoute)
	c.Skipped(SkipNoRoute)
	c.Skipped(SkipNoPosition)
	c.SetTracked(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.SkippedReports.WithLabelValues(SkipNoRoute)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SkippedReports.WithLabelValues(SkipNoPosition)))
	assert.Equal(t, 7.0, testutil.ToFloat64(c.TrackedFlights))
}

func TestNewCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	require.NoError(t, err)
	second, err := NewCollector(reg)
	require.NoError(t, err)

	first.SetTracked(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(second.TrackedFlights))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveFetch(nil, time.Second)
		c.ObserveEvaluation(phase.Inbound, phase.Landed, false)
		c.Skipped(SkipNoCallsign)
		c.SetTracked(1)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.ObserveEvaluation(phase.Outbound, phase.Departing, false)
	c.SetTracked(1)

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `flightboard_evaluations_total{direction="outbound",phase="DEPARTING"} 1`)
	assert.Contains(t, body, "flightboard_tracked_flights 1")
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string) uint64 {
	t.Helper()

	families, err := gatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return sampleCount(mf)
		}
	}
	return 0
}

func sampleCount(mf *dto.MetricFamily) uint64 {
	var total uint64
	for _, m := range mf.GetMetric() {
		total += m.GetHistogram().GetSampleCount()
	}
	return total
}
