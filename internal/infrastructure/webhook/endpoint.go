// Package webhook posts run summaries to HTTP endpoints configured in the
// workspace, signing each body and keeping failed deliveries on disk.
package webhook

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Payload formats.
const (
	FormatJSON  = "json"
	FormatSlack = "slack"
)

// OutcomeFailed marks a run that ended with an error instead of a result.
const OutcomeFailed = "failed"

const DefaultMaxRetries = 3

var validate = validator.New(validator.WithRequiredStructEnabled())

// Endpoint is one notification target. An empty Outcomes list matches
// every run.
type Endpoint struct {
	Name       string   `yaml:"name" validate:"required"`
	URL        string   `yaml:"url" validate:"required,http_url"`
	Secret     string   `yaml:"secret,omitempty"`
	Format     string   `yaml:"format,omitempty" validate:"omitempty,oneof=json slack"`
	Outcomes   []string `yaml:"outcomes,omitempty" validate:"dive,oneof=satisfied exhausted failed"`
	MaxRetries int      `yaml:"max_retries,omitempty" validate:"gte=0,lte=10"`
	Disabled   bool     `yaml:"disabled,omitempty"`
}

func (e Endpoint) matches(outcome string) bool {
	if len(e.Outcomes) == 0 {
		return true
	}
	for _, o := range e.Outcomes {
		if o == outcome {
			return true
		}
	}
	return false
}

func (e Endpoint) retries() int {
	if e.MaxRetries <= 0 {
		return DefaultMaxRetries
	}
	return e.MaxRetries
}

// ValidateEndpoints checks every endpoint and rejects duplicate names.
func ValidateEndpoints(endpoints []Endpoint) error {
	seen := make(map[string]bool, len(endpoints))
	var issues []string
	for i, ep := range endpoints {
		if err := validate.Struct(ep); err != nil {
			var verrs validator.ValidationErrors
			if !errors.As(err, &verrs) {
				return fmt.Errorf("validate webhook %d: %w", i, err)
			}
			for _, fe := range verrs {
				issues = append(issues, fmt.Sprintf("webhooks[%d].%s failed %s", i, strings.ToLower(fe.Field()), fe.Tag()))
			}
			continue
		}
		if seen[ep.Name] {
			issues = append(issues, fmt.Sprintf("webhooks[%d]: duplicate name %q", i, ep.Name))
		}
		seen[ep.Name] = true
	}
	if len(issues) > 0 {
		return fmt.Errorf("invalid webhooks: %s", strings.Join(issues, "; "))
	}
	return nil
}
