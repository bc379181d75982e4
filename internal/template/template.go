// Package template declares the expected shape of a sheet: named attributes
// with scalar or composite types. A Template compiles, through a Config,
// into a specification.Specification.
package template

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/sheetcast/internal/specification"
)

// ErrInvalidTemplate is returned for malformed declarations.
var ErrInvalidTemplate = errors.New("invalid template")

// Declaration is the raw form of one attribute. Type takes any form accepted
// by NewAttribute.
type Declaration struct {
	Key  string
	Type any
}

// Template is an immutable, ordered list of attributes.
type Template struct {
	name        string
	description string
	attributes  []Attribute
}

// New builds a template from declarations, in order. Keys must be unique.
func New(name string, decls []Declaration) (*Template, error) {
	t := &Template{name: name, attributes: make([]Attribute, 0, len(decls))}
	seen := make(map[string]bool, len(decls))

	for _, d := range decls {
		if seen[d.Key] {
			return nil, fmt.Errorf("%w: duplicate attribute %q", ErrInvalidTemplate, d.Key)
		}
		seen[d.Key] = true

		attr, err := NewAttribute(d.Key, d.Type)
		if err != nil {
			return nil, err
		}
		t.attributes = append(t.attributes, attr)
	}

	return t, nil
}

// Name returns the template name. It may be empty.
func (t *Template) Name() string { return t.name }

// Description returns the free-form description of a loaded template.
func (t *Template) Description() string { return t.description }

// Attributes returns the attributes in declaration order.
func (t *Template) Attributes() []Attribute {
	return append([]Attribute(nil), t.attributes...)
}

// Columns expands every attribute, in declaration order.
func (t *Template) Columns(cfg Config) ([]specification.Column, error) {
	var cols []specification.Column
	for _, a := range t.attributes {
		c, err := a.Columns(cfg)
		if err != nil {
			return nil, err
		}
		cols = append(cols, c...)
	}
	return cols, nil
}

// Apply compiles the template into a Specification.
func (t *Template) Apply(cfg Config) (*specification.Specification, error) {
	cols, err := t.Columns(cfg)
	if err != nil {
		return nil, err
	}
	return specification.New(cols)
}
