package prompt

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is a concurrency-safe set of named templates. Built-in templates
// are always present; file templates may shadow them and can be swapped in
// wholesale when the template directory changes.
type Registry struct {
	mu        sync.RWMutex
	builtins  map[string]*Template
	templates map[string]*Template
}

// NewRegistry returns a registry seeded with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{builtins: make(map[string]*Template)}
	for _, t := range Builtins() {
		r.builtins[t.Name] = t
	}
	r.templates = r.merge(nil)
	return r
}

// Get returns the template registered under name.
func (r *Registry) Get(name string) (*Template, error) {
	if name == "" {
		name = DefaultTemplate
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	if !ok {
		return nil, &TemplateError{Template: name, Reason: "unknown template"}
	}
	return t, nil
}

// List returns all templates sorted by name.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Replace swaps the file-backed templates for extra. Duplicate names in
// extra are rejected and leave the registry unchanged.
func (r *Registry) Replace(extra []*Template) error {
	seen := make(map[string]bool, len(extra))
	for _, t := range extra {
		if t == nil || t.Name == "" {
			return fmt.Errorf("template without a name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate template %q", t.Name)
		}
		seen[t.Name] = true
	}

	merged := r.merge(extra)
	r.mu.Lock()
	r.templates = merged
	r.mu.Unlock()
	return nil
}

func (r *Registry) merge(extra []*Template) map[string]*Template {
	out := make(map[string]*Template, len(r.builtins)+len(extra))
	for name, t := range r.builtins {
		out[name] = t
	}
	for _, t := range extra {
		out[t.Name] = t
	}
	return out
}
