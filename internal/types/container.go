// Package types holds the casting side of sheetcast: scalar pipelines,
// composite builders, and the Container registry that compiles type names
// declared in a template into bound casting units.
package types

import (
	"errors"
	"fmt"
	"sort"

	"github.com/JonMunkholm/sheetcast/internal/messaging"
)

var (
	// ErrUnknownScalar is returned when a template names a scalar the
	// container does not know. It is a configuration error, never a message.
	ErrUnknownScalar = errors.New("unknown scalar type")

	// ErrUnknownComposite is returned for unregistered composite kinds.
	ErrUnknownComposite = errors.New("unknown composite type")
)

// Default registry names.
const (
	ScalarAny     = "scalar"
	ScalarString  = "string"
	ScalarEmail   = "email"
	ScalarURL     = "url"
	ScalarBoolsy  = "boolsy"
	ScalarDate    = "date"
	ScalarNumeric = "numeric"
	ScalarUUID    = "uuid"

	CompositeArray = "array"
)

// ScalarFactory builds a fresh Scalar for one compiled column.
type ScalarFactory func() Scalar

// CompositeBuilder assembles the casted slot values of a composite attribute.
// values has one entry per declared scalar, nil where a slot is unmatched or
// failed. Returning false rejects the row; the builder must then have
// recorded an ERROR message on m.
type CompositeBuilder func(values []any, m *messaging.Messenger) (any, bool)

// Array is the built-in "array" composite: the slot values, in order.
func Array(values []any, _ *messaging.Messenger) (any, bool) {
	out := make([]any, len(values))
	copy(out, values)
	return out, true
}

// Container maps scalar names to factories and composite kinds to builders.
// It is built once by NewContainer and never modified afterwards, so it can be
// shared by any number of templates and goroutines.
type Container struct {
	scalars    map[string]ScalarFactory
	composites map[string]CompositeBuilder
}

// Option customizes a Container under construction.
type Option func(*Container)

// WithScalars adds or overrides scalar factories.
func WithScalars(scalars map[string]ScalarFactory) Option {
	return func(c *Container) {
		for name, f := range scalars {
			c.scalars[name] = f
		}
	}
}

// WithComposites adds or overrides composite builders.
func WithComposites(composites map[string]CompositeBuilder) Option {
	return func(c *Container) {
		for kind, b := range composites {
			c.composites[kind] = b
		}
	}
}

// NewContainer returns a container holding the built-in scalars and the
// array composite, plus whatever opts register.
func NewContainer(opts ...Option) *Container {
	c := &Container{
		scalars: map[string]ScalarFactory{
			ScalarAny:     Any,
			ScalarString:  String,
			ScalarEmail:   Email,
			ScalarURL:     URL,
			ScalarBoolsy:  Boolsy,
			ScalarDate:    Date,
			ScalarNumeric: Numeric,
			ScalarUUID:    UUID,
		},
		composites: map[string]CompositeBuilder{
			CompositeArray: Array,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scalar compiles a scalar-typed attribute.
func (c *Container) Scalar(name string) (Type, error) {
	s, err := c.lookupScalar(name)
	if err != nil {
		return nil, err
	}
	return &scalarType{name: name, scalar: s}, nil
}

// Composite compiles a composite-typed attribute of the given kind whose
// slots are the named scalars, in order.
func (c *Container) Composite(kind string, names []string) (Type, error) {
	build, ok := c.composites[kind]
	if !ok || build == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComposite, kind)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("composite %q: no scalars", kind)
	}

	slots := make([]Scalar, len(names))
	for i, name := range names {
		s, err := c.lookupScalar(name)
		if err != nil {
			return nil, fmt.Errorf("composite %q slot %d: %w", kind, i, err)
		}
		slots[i] = s
	}

	return &compositeType{
		kind:    kind,
		names:   append([]string(nil), names...),
		scalars: slots,
		build:   build,
	}, nil
}

// ScalarNames returns the registered scalar names, sorted.
func (c *Container) ScalarNames() []string {
	names := make([]string, 0, len(c.scalars))
	for name := range c.scalars {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CompositeKinds returns the registered composite kinds, sorted.
func (c *Container) CompositeKinds() []string {
	kinds := make([]string, 0, len(c.composites))
	for kind := range c.composites {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func (c *Container) lookupScalar(name string) (Scalar, error) {
	f, ok := c.scalars[name]
	if !ok || f == nil {
		return Scalar{}, fmt.Errorf("%w: %q", ErrUnknownScalar, name)
	}
	return f(), nil
}
