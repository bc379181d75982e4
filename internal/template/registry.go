package template

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrDuplicateTemplate is returned when two templates share a name.
var ErrDuplicateTemplate = errors.New("template already registered")

// Registry holds named templates. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register adds a named template.
func (r *Registry) Register(t *Template) error {
	if t.name == "" {
		return fmt.Errorf("%w: template has no name", ErrInvalidTemplate)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.templates[t.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTemplate, t.name)
	}
	r.templates[t.name] = t
	return nil
}

// Get returns a template by name.
func (r *Registry) Get(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	return t, ok
}

// All returns every registered template, sorted by name.
func (r *Registry) All() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		result = append(result, t)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].name < result[j].name
	})
	return result
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.templates)
}
