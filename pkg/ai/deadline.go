package ai

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/timeout"
	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
)

// DefaultTimeout bounds a single completion call when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// DeadlineProvider bounds every call of the wrapped provider with a
// deadline. It never retries; a call that runs out of time is reported as a
// *ai.ProviderError like any other provider failure.
type DeadlineProvider struct {
	inner   ai.Provider
	timeout time.Duration
}

func NewDeadlineProvider(inner ai.Provider, d time.Duration) *DeadlineProvider {
	if d <= 0 {
		d = DefaultTimeout
	}
	return &DeadlineProvider{inner: inner, timeout: d}
}

func (p *DeadlineProvider) ID() string {
	return p.inner.ID()
}

// Timeout returns the per-call deadline.
func (p *DeadlineProvider) Timeout() time.Duration {
	return p.timeout
}

func (p *DeadlineProvider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResponse, error) {
	t := timeout.New[*ai.CompletionResponse](timeout.Config{
		DefaultTimeout: p.timeout,
	})

	res, err := t.Execute(ctx, p.timeout, func(ctx context.Context) (*ai.CompletionResponse, error) {
		return p.inner.Complete(ctx, req)
	})
	if err != nil {
		return nil, ai.NewProviderError(p.ID(), err)
	}
	return res, nil
}
