package ai

import (
	"errors"
	"fmt"
)

// ErrNoCandidates is wrapped when the provider answered without any choice.
var ErrNoCandidates = errors.New("provider returned no candidates")

// ErrMissingCredential is wrapped when a provider is used without its API key.
var ErrMissingCredential = errors.New("provider credential not configured")

// ProviderError collapses transport, authentication and empty-response
// failures into one error that keeps the provider's own message text.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("provider %s failed", e.Provider)
	}
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err for provider id. A nil err yields nil, and an
// err that already is a *ProviderError is returned untouched.
func NewProviderError(id string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	return &ProviderError{Provider: id, Err: err}
}

// IsProviderError reports whether err is, or wraps, a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
