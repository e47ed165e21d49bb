package sdk

import (
	"errors"
	"fmt"
)

// ErrNoContent is returned when a tool result contains no content items.
var ErrNoContent = errors.New("qualify: empty tool result")

// ToolError is returned when a tool call returns an error result. Message is
// the server's user-facing text.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("qualify: tool %s: %s", e.Tool, e.Message)
}

// IsToolError reports whether err came back from the server as a tool error.
func IsToolError(err error) bool {
	var te *ToolError
	return errors.As(err, &te)
}
