package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/felixgeelhaar/qualify/pkg/application"
	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
)

func TestObserver_CountsAttemptsAndRuns(t *testing.T) {
	var o Observer

	retrying := value(t, AttemptsTotal.WithLabelValues(generation.StateRetrying))
	satisfied := value(t, RunsTotal.WithLabelValues(string(generation.OutcomeSatisfied)))

	o.AttemptFinished(application.AttemptEvent{State: generation.StateRetrying})
	o.RunFinished(&generation.Result{Outcome: generation.OutcomeSatisfied, AttemptsUsed: 2}, nil)

	if got := value(t, AttemptsTotal.WithLabelValues(generation.StateRetrying)); got != retrying+1 {
		t.Errorf("attempts_total{state=retrying} = %v, want %v", got, retrying+1)
	}
	if got := value(t, RunsTotal.WithLabelValues(string(generation.OutcomeSatisfied))); got != satisfied+1 {
		t.Errorf("runs_total{outcome=satisfied} = %v, want %v", got, satisfied+1)
	}
}

func TestObserver_CountsErrorsByKind(t *testing.T) {
	var o Observer

	failed := value(t, AttemptsTotal.WithLabelValues("failed"))
	provider := value(t, ErrorsTotal.WithLabelValues(string(application.KindProvider)))

	err := ai.NewProviderError("p", errors.New("down"))
	o.AttemptFinished(application.AttemptEvent{State: generation.StateAttempting, Err: err})
	o.RunFinished(nil, err)

	if got := value(t, AttemptsTotal.WithLabelValues("failed")); got != failed+1 {
		t.Errorf("attempts_total{state=failed} = %v, want %v", got, failed+1)
	}
	if got := value(t, ErrorsTotal.WithLabelValues(string(application.KindProvider))); got != provider+1 {
		t.Errorf("errors_total{kind=provider} = %v, want %v", got, provider+1)
	}
}

func value(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
