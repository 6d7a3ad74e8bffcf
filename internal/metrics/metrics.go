package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/flightboard/internal/phase"
)

// Skip reasons for reports that never reach the evaluator
const (
	SkipNoCallsign      = "no_callsign"
	SkipNoPosition      = "no_position"
	SkipNoRoute         = "no_route"
	SkipIncompleteRoute = "incomplete_route"
)

// Collector bundles the Prometheus metrics of the poll cycle.
// A nil *Collector is valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Evaluations        *prometheus.CounterVec
	EvaluationFailures prometheus.Counter
	Fetches            *prometheus.CounterVec
	FetchDuration      prometheus.Histogram
	TrackedFlights     prometheus.Gauge
	SkippedReports     *prometheus.CounterVec
}

// NewCollector registers the metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evaluations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightboard_evaluations_total",
		Help: "Flights evaluated, labeled by route direction and phase code.",
	}, []string{"direction", "phase"}), "flightboard_evaluations_total")
	if err != nil {
		return nil, err
	}

	failures, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flightboard_evaluation_failures_total",
		Help: "Flight evaluations abandoned after a failure or cancellation.",
	}), "flightboard_evaluation_failures_total")
	if err != nil {
		return nil, err
	}

	fetches, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightboard_fetch_total",
		Help: "Feed polls, labeled by result (ok or error).",
	}, []string{"result"}), "flightboard_fetch_total")
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "flightboard_fetch_duration_seconds",
		Help:    "Feed poll latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}), "flightboard_fetch_duration_seconds")
	if err != nil {
		return nil, err
	}

	tracked, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "flightboard_tracked_flights",
		Help: "Flights on the board after the last cycle.",
	}), "flightboard_tracked_flights")
	if err != nil {
		return nil, err
	}

	skipped, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flightboard_skipped_reports_total",
		Help: "Feed reports dropped before evaluation, labeled by reason.",
	}, []string{"reason"}), "flightboard_skipped_reports_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		Evaluations:        evaluations,
		EvaluationFailures: failures,
		Fetches:            fetches,
		FetchDuration:      duration,
		TrackedFlights:     tracked,
		SkippedReports:     skipped,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveFetch records one feed poll
func (c *Collector) ObserveFetch(err error, took time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Fetches.WithLabelValues(result).Inc()
	c.FetchDuration.Observe(took.Seconds())
}

// ObserveEvaluation records one flight result
func (c *Collector) ObserveEvaluation(d phase.Direction, label phase.Label, failed bool) {
	if c == nil {
		return
	}
	if failed {
		c.EvaluationFailures.Inc()
	}
	c.Evaluations.WithLabelValues(d.String(), label.Code()).Inc()
}

// Skipped records a report dropped before evaluation
func (c *Collector) Skipped(reason string) {
	if c == nil {
		return
	}
	c.SkippedReports.WithLabelValues(reason).Inc()
}

// SetTracked sets the number of flights on the board
func (c *Collector) SetTracked(n int) {
	if c == nil {
		return
	}
	c.TrackedFlights.Set(float64(n))
}

// register adds a collector to reg, reusing an identical collector that is already registered
func register[T prometheus.Collector](reg prometheus.Registerer, c T, name string) (T, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return c, nil
}
