// Package generation models one question-generation run: the request, the
// attempt state machine and the reported result.
package generation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Request bounds, matching the interactive form.
const (
	MinCount       = 1
	MaxCount       = 20
	DefaultCount   = 5
	MaxTemperature = 2.0
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request is one user interaction: a situation, how many questions to ask
// for, and the sampling temperature.
type Request struct {
	Situation   string  `json:"situation" yaml:"situation" validate:"required"`
	Count       int     `json:"count" yaml:"count" validate:"min=1,max=20"`
	Temperature float64 `json:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	Template    string  `json:"template,omitempty" yaml:"template,omitempty"`
}

// RequestError lists every field that failed validation.
type RequestError struct {
	Issues []string
}

func (e *RequestError) Error() string {
	return "invalid generation request: " + strings.Join(e.Issues, "; ")
}

// Validate trims the situation and checks all bounds.
func (r *Request) Validate() error {
	r.Situation = strings.TrimSpace(r.Situation)
	r.Template = strings.TrimSpace(r.Template)

	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate request: %w", err)
	}
	issues := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		issues = append(issues, describe(fe))
	}
	return &RequestError{Issues: issues}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", strings.ToLower(fe.Field()), fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", strings.ToLower(fe.Field()), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
}
