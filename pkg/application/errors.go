package application

import (
	"context"
	"errors"

	"github.com/felixgeelhaar/qualify/pkg/domain/ai"
	"github.com/felixgeelhaar/qualify/pkg/domain/generation"
	"github.com/felixgeelhaar/qualify/pkg/domain/prompt"
	"github.com/felixgeelhaar/qualify/pkg/domain/questions"
)

// ErrorKind names the class of a generation failure.
type ErrorKind string

const (
	KindNone      ErrorKind = ""
	KindRequest   ErrorKind = "request"
	KindTemplate  ErrorKind = "template"
	KindProvider  ErrorKind = "provider"
	KindMalformed ErrorKind = "malformed"
	KindSchema    ErrorKind = "schema"
	KindCancelled ErrorKind = "cancelled"
	KindInternal  ErrorKind = "internal"
)

// ClassifyError maps err onto the generation error taxonomy.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var (
		reqErr    *generation.RequestError
		tmplErr   *prompt.TemplateError
		malformed *questions.MalformedResponseError
		schemaErr *questions.SchemaError
	)
	switch {
	case errors.As(err, &reqErr), errors.Is(err, ErrEmptyGoal):
		return KindRequest
	case errors.As(err, &tmplErr):
		return KindTemplate
	case errors.As(err, &malformed):
		return KindMalformed
	case errors.As(err, &schemaErr):
		return KindSchema
	case ai.IsProviderError(err):
		return KindProvider
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	}
	return KindInternal
}

// IsClientError reports whether err was caused by the caller's input rather
// than by the provider or its reply.
func IsClientError(err error) bool {
	switch ClassifyError(err) {
	case KindRequest, KindTemplate:
		return true
	}
	return false
}
