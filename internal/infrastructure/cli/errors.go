package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/qualify/pkg/application"
	domainai "github.com/felixgeelhaar/qualify/pkg/domain/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
	"github.com/felixgeelhaar/qualify/pkg/domain/questions"
)

// CLIError wraps domain errors with user-facing messages and actionable hints.
type CLIError struct {
	Message  string
	Hint     string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// NewCLIError creates a CLIError with a default exit code of 1.
func NewCLIError(msg, hint string, err error) *CLIError {
	return &CLIError{
		Message:  msg,
		Hint:     hint,
		Err:      err,
		ExitCode: 1,
	}
}

// MapError converts known domain errors into CLIErrors with actionable hints.
// Unmapped errors are returned as-is.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return err
	}

	if errors.Is(err, domainai.ErrMissingCredential) {
		return NewCLIError("AI provider is not configured",
			"Set the API key in the environment or a .env file, or pick another provider with 'qualify config set --provider'", err)
	}
	if errors.Is(err, application.ErrEmptyGoal) {
		return NewCLIError("no goal given", "Pass the goal as an argument: qualify plan \"<goal>\"", err)
	}

	var (
		reqErr    *generation.RequestError
		tmplErr   *prompt.TemplateError
		malformed *questions.MalformedResponseError
		schemaErr *questions.SchemaError
	)
	switch {
	case errors.As(err, &reqErr):
		return NewCLIError("invalid request",
			fmt.Sprintf("Use a non-empty situation and a count between %d and %d", generation.MinCount, generation.MaxCount), err)
	case errors.As(err, &tmplErr):
		return NewCLIError("template cannot be used",
			"Run 'qualify templates list' and check the template body for {input} and {num}", err)
	case errors.As(err, &malformed):
		return NewCLIError("the AI reply was not valid JSON",
			"Try again, or lower --temperature", err)
	case errors.As(err, &schemaErr):
		return NewCLIError("the AI reply did not match the expected shape",
			"Try again, or use a template that asks for question and explanation fields", err)
	case domainai.IsProviderError(err):
		return NewCLIError("AI provider request failed",
			"Check the API key, model name and network connectivity", err)
	case errors.Is(err, context.Canceled):
		return &CLIError{Message: "cancelled", Err: err, ExitCode: 130}
	}

	return err
}
