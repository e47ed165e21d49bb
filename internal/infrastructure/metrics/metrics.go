// Package metrics provides Prometheus metrics for question generation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
)

var (
	// AttemptsTotal counts provider attempts by their resulting state.
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qualify",
			Name:      "attempts_total",
			Help:      "Total number of generation attempts",
		},
		[]string{"state"},
	)

	// RunsTotal counts finished runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qualify",
			Name:      "runs_total",
			Help:      "Total number of generation runs",
		},
		[]string{"outcome"},
	)

	// ErrorsTotal counts failed runs by error kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qualify",
			Name:      "errors_total",
			Help:      "Total number of failed generation runs",
		},
		[]string{"kind"},
	)

	// AttemptsPerRun observes how many attempts a completed run needed.
	AttemptsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "qualify",
			Name:      "attempts_per_run",
			Help:      "Distribution of attempts used per completed run",
			Buckets:   []float64{1, 2, 3},
		},
	)
)

// Observer records generation progress into the package metrics.
type Observer struct{}

var _ application.Observer = Observer{}

func (Observer) AttemptStarted(application.AttemptEvent) {}

func (Observer) AttemptFinished(e application.AttemptEvent) {
	state := e.State
	if e.Err != nil {
		state = "failed"
	}
	AttemptsTotal.WithLabelValues(state).Inc()
}

func (Observer) RunFinished(res *generation.Result, err error) {
	if err != nil {
		RecordError(string(application.ClassifyError(err)))
		return
	}
	if res == nil {
		return
	}
	RunsTotal.WithLabelValues(string(res.Outcome)).Inc()
	AttemptsPerRun.Observe(float64(res.AttemptsUsed))
}

// RecordError records a failed run.
func RecordError(kind string) {
	ErrorsTotal.WithLabelValues(kind).Inc()
}
