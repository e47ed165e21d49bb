package prompt

import "fmt"

// TemplateError reports a template that cannot be rendered: a declared
// placeholder with no supplied value, or a malformed template body.
type TemplateError struct {
	Template    string
	Placeholder string
	Reason      string
}

func (e *TemplateError) Error() string {
	name := e.Template
	if name == "" {
		name = "<inline>"
	}
	if e.Placeholder != "" {
		return fmt.Sprintf("template %s: placeholder {%s}: %s", name, e.Placeholder, e.Reason)
	}
	return fmt.Sprintf("template %s: %s", name, e.Reason)
}
