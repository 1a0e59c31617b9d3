// Package metrics reports CLI step outcomes to a Prometheus Pushgateway.
//
// A pipekit invocation is a short-lived batch job, so metrics are pushed
// once at exit rather than scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Step statuses used as label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// DefaultJob is the Pushgateway job name used when none is configured.
const DefaultJob = "pipekit"

// Recorder collects step metrics for one invocation.
type Recorder interface {
	// ObserveStep records one completed step and its duration.
	ObserveStep(step, status string, d time.Duration)

	// AddRowsLoaded counts rows written by the loader.
	AddRowsLoaded(n int64)

	// Flush delivers everything recorded so far.
	Flush(ctx context.Context) error
}

// PushRecorder keeps metrics in a private registry and pushes them to a
// Pushgateway on Flush.
type PushRecorder struct {
	gatewayURL string
	job        string
	reg        *prometheus.Registry

	stepTotal    *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	rowsLoaded   prometheus.Counter
}

// NewPushRecorder creates a recorder pushing to gatewayURL under job.
func NewPushRecorder(gatewayURL, job string) (*PushRecorder, error) {
	if gatewayURL == "" {
		return nil, fmt.Errorf("metrics: gateway URL is required")
	}
	if job == "" {
		job = DefaultJob
	}

	stepTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipekit_step_total",
			Help: "Completed pipekit steps by step and status.",
		},
		[]string{"step", "status"},
	)
	stepDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipekit_step_duration_seconds",
			Help:    "Duration of pipekit steps in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"step", "status"},
	)
	rowsLoaded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pipekit_rows_loaded_total",
		Help: "Rows inserted by table loads.",
	})

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{stepTotal, stepDuration, rowsLoaded} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: register collector: %w", err)
		}
	}

	return &PushRecorder{
		gatewayURL:   gatewayURL,
		job:          job,
		reg:          reg,
		stepTotal:    stepTotal,
		stepDuration: stepDuration,
		rowsLoaded:   rowsLoaded,
	}, nil
}

func (r *PushRecorder) ObserveStep(step, status string, d time.Duration) {
	r.stepTotal.WithLabelValues(step, status).Inc()
	r.stepDuration.WithLabelValues(step, status).Observe(d.Seconds())
}

func (r *PushRecorder) AddRowsLoaded(n int64) {
	if n > 0 {
		r.rowsLoaded.Add(float64(n))
	}
}

// Flush replaces this job's metric group on the Pushgateway.
func (r *PushRecorder) Flush(ctx context.Context) error {
	if err := push.New(r.gatewayURL, r.job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("metrics: push to %s: %w", r.gatewayURL, err)
	}
	return nil
}

// NullRecorder discards all metrics.
type NullRecorder struct{}

func (NullRecorder) ObserveStep(string, string, time.Duration) {}
func (NullRecorder) AddRowsLoaded(int64) {}
func (NullRecorder) Flush(context.Context) error { return nil }

// StatusOf maps a step error to its status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusFailure
	}
	return StatusSuccess
}
