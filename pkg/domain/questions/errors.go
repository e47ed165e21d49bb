package questions

import (
	"fmt"
	"strings"
)

// MalformedResponseError is returned when a reply is not valid JSON even
// after trailing-comma repair. Text holds the normalized reply.
type MalformedResponseError struct {
	Reason string
	Text   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed model response: %s; text: %s", e.Reason, e.Text)
}

// SchemaError is returned when a reply is valid JSON but is not an array of
// objects with string "question" and "explanation" fields.
type SchemaError struct {
	Issues []string
}

func (e *SchemaError) Error() string {
	if len(e.Issues) == 0 {
		return "model response does not match the question schema"
	}
	return "model response does not match the question schema: " + strings.Join(e.Issues, "; ")
}
