// Package prompt holds immutable prompt templates with named {placeholder}
// slots and renders them with caller-supplied variables.
package prompt

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Standard placeholder names used by question templates.
const (
	VarInput = "input"
	VarNum   = "num"
)

type segment struct {
	text        string
	placeholder string
}

// Template is a parsed prompt body. Placeholders are written {name};
// literal braces are written {{ and }}. A Template is immutable once built
// and safe for concurrent use.
type Template struct {
	Name        string
	Title       string
	Description string
	Body        string

	segments     []segment
	placeholders []string
}

// New parses body into a Template.
func New(name, body string) (*Template, error) {
	segs, err := parse(body)
	if err != nil {
		err.Template = name
		return nil, err
	}

	seen := make(map[string]bool)
	var names []string
	for _, s := range segs {
		if s.placeholder != "" && !seen[s.placeholder] {
			seen[s.placeholder] = true
			names = append(names, s.placeholder)
		}
	}
	sort.Strings(names)

	return &Template{
		Name:         name,
		Body:         body,
		segments:     segs,
		placeholders: names,
	}, nil
}

// MustNew is New for package-level templates; it panics on a bad body.
func MustNew(name, body string) *Template {
	t, err := New(name, body)
	if err != nil {
		panic(err)
	}
	return t
}

// WithInfo returns a copy of t carrying display metadata.
func (t *Template) WithInfo(title, description string) *Template {
	c := *t
	c.Title = title
	c.Description = description
	return &c
}

// Placeholders returns the distinct placeholder names in sorted order.
func (t *Template) Placeholders() []string {
	out := make([]string, len(t.placeholders))
	copy(out, t.placeholders)
	return out
}

// Render substitutes every placeholder with its value from vars. Values are
// inserted verbatim and never rescanned. A placeholder missing from vars
// fails the render with a *TemplateError.
func (t *Template) Render(vars map[string]string) (string, error) {
	for _, name := range t.placeholders {
		if _, ok := vars[name]; !ok {
			return "", &TemplateError{Template: t.Name, Placeholder: name, Reason: "no value supplied"}
		}
	}

	var b strings.Builder
	b.Grow(len(t.Body))
	for _, s := range t.segments {
		if s.placeholder != "" {
			b.WriteString(vars[s.placeholder])
			continue
		}
		b.WriteString(s.text)
	}
	return b.String(), nil
}

// RenderQuestions binds the situation and requested count to {input} and {num}.
func RenderQuestions(t *Template, situation string, count int) (string, error) {
	return t.Render(map[string]string{
		VarInput: situation,
		VarNum:   strconv.Itoa(count),
	})
}

func parse(body string) ([]segment, *TemplateError) {
	var (
		segs []segment
		lit  strings.Builder
	)
	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, segment{text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(body); i++ {
		c := body[i]
		switch c {
		case '{':
			if i+1 < len(body) && body[i+1] == '{' {
				lit.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(body[i+1:], '}')
			if end < 0 {
				return nil, &TemplateError{Reason: fmt.Sprintf("unclosed '{' at offset %d", i)}
			}
			name := body[i+1 : i+1+end]
			if !validName(name) {
				return nil, &TemplateError{Reason: fmt.Sprintf("invalid placeholder %q at offset %d", name, i)}
			}
			flush()
			segs = append(segs, segment{placeholder: name})
			i += end + 1
		case '}':
			if i+1 < len(body) && body[i+1] == '}' {
				lit.WriteByte('}')
				i++
				continue
			}
			return nil, &TemplateError{Reason: fmt.Sprintf("single '}' at offset %d", i)}
		default:
			lit.WriteByte(c)
		}
	}
	flush()
	return segs, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
