package template

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetcast/internal/specification"
	"github.com/JonMunkholm/sheetcast/internal/types"
)

// NoIndex is the Column index of a scalar-typed attribute.
const NoIndex = specification.NoIndex

// requiredMark is the tag suffix declaring a scalar required.
const requiredMark = "!"

// Scalar is a parsed scalar tag: "email!" is {Name: "email", Required: true}.
type Scalar struct {
	Name     string
	Required bool
}

// ParseScalar parses a scalar tag.
func ParseScalar(tag string) (Scalar, error) {
	tag = strings.TrimSpace(tag)
	name, required := strings.CutSuffix(tag, requiredMark)
	if name == "" || strings.ContainsAny(name, requiredMark+" \t") {
		return Scalar{}, fmt.Errorf("%w: malformed scalar tag %q", ErrInvalidTemplate, tag)
	}
	return Scalar{Name: name, Required: required}, nil
}

func (s Scalar) String() string {
	if s.Required {
		return s.Name + requiredMark
	}
	return s.Name
}

// Composite declares a composite type: an ordered group of scalar tags
// assembled by the builder registered under Kind.
type Composite struct {
	Kind    string
	Scalars []string
}

// Attribute is one declared key and its type. It expands to a single Column
// when scalar-typed, one Column per scalar when composite.
type Attribute struct {
	key     string
	kind    string // empty for scalar-typed attributes
	scalars []Scalar
}

// NewAttribute builds an attribute from its declaration. decl is one of:
//   - a scalar tag string ("email", "email!")
//   - a []string or []any of tags, shorthand for an array composite
//   - a Composite
//   - a map with "composite" and "scalars" entries, as decoded from YAML
func NewAttribute(key string, decl any) (Attribute, error) {
	if strings.TrimSpace(key) == "" {
		return Attribute{}, fmt.Errorf("%w: attribute key is empty", ErrInvalidTemplate)
	}

	attr := Attribute{key: key}
	var tags []string

	switch d := decl.(type) {
	case string:
		s, err := ParseScalar(d)
		if err != nil {
			return Attribute{}, fmt.Errorf("attribute %q: %w", key, err)
		}
		attr.scalars = []Scalar{s}
		return attr, nil
	case []string:
		attr.kind = types.CompositeArray
		tags = d
	case []any:
		attr.kind = types.CompositeArray
		var err error
		if tags, err = stringTags(d); err != nil {
			return Attribute{}, fmt.Errorf("attribute %q: %w", key, err)
		}
	case Composite:
		attr.kind = d.Kind
		tags = d.Scalars
	case map[string]any:
		kind, _ := d["composite"].(string)
		list, _ := d["scalars"].([]any)
		var err error
		if tags, err = stringTags(list); err != nil {
			return Attribute{}, fmt.Errorf("attribute %q: %w", key, err)
		}
		attr.kind = kind
	default:
		return Attribute{}, fmt.Errorf("%w: attribute %q: unsupported type declaration %T", ErrInvalidTemplate, key, decl)
	}

	if attr.kind == "" {
		return Attribute{}, fmt.Errorf("%w: attribute %q: composite kind is empty", ErrInvalidTemplate, key)
	}
	if len(tags) == 0 {
		return Attribute{}, fmt.Errorf("%w: attribute %q: composite has no scalars", ErrInvalidTemplate, key)
	}
	for _, tag := range tags {
		s, err := ParseScalar(tag)
		if err != nil {
			return Attribute{}, fmt.Errorf("attribute %q: %w", key, err)
		}
		attr.scalars = append(attr.scalars, s)
	}
	return attr, nil
}

func stringTags(list []any) ([]string, error) {
	tags := make([]string, 0, len(list))
	for i, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: scalar %d is %T, want string", ErrInvalidTemplate, i, v)
		}
		tags = append(tags, s)
	}
	return tags, nil
}

// Key returns the attribute key.
func (a Attribute) Key() string { return a.key }

// Composite reports whether the attribute is composite-typed.
func (a Attribute) Composite() bool { return a.kind != "" }

// Kind returns the composite kind, empty for scalar-typed attributes.
func (a Attribute) Kind() string { return a.kind }

// Scalars returns the declared scalars in order.
func (a Attribute) Scalars() []Scalar {
	return append([]Scalar(nil), a.scalars...)
}

// Columns compiles the attribute type through cfg and expands it into its
// Columns. Every call returns a fresh slice.
func (a Attribute) Columns(cfg Config) ([]specification.Column, error) {
	typ, err := a.compile(cfg.Types())
	if err != nil {
		return nil, fmt.Errorf("attribute %q: %w", a.key, err)
	}

	if !a.Composite() {
		label, pattern := cfg.Header(a.key, NoIndex)
		return []specification.Column{{
			Key:           a.key,
			Type:          typ,
			Index:         NoIndex,
			Header:        label,
			HeaderPattern: pattern,
			Required:      a.scalars[0].Required,
		}}, nil
	}

	cols := make([]specification.Column, len(a.scalars))
	for i, s := range a.scalars {
		label, pattern := cfg.Header(a.key, i)
		cols[i] = specification.Column{
			Key:           a.key,
			Type:          typ,
			Index:         i,
			Header:        label,
			HeaderPattern: pattern,
			Required:      s.Required,
		}
	}
	return cols, nil
}

func (a Attribute) compile(c *types.Container) (types.Type, error) {
	if !a.Composite() {
		return c.Scalar(a.scalars[0].Name)
	}
	names := make([]string, len(a.scalars))
	for i, s := range a.scalars {
		names[i] = s.Name
	}
	return c.Composite(a.kind, names)
}
