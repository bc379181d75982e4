// Package specification holds the compiled, ordered column list of a
// template and matches it against the header row of an actual sheet.
package specification

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/JonMunkholm/sheetcast/internal/types"
)

// NoIndex is the Column index of a scalar-typed attribute.
const NoIndex = -1

// ErrInvalidColumns is returned by New for an inconsistent column list.
var ErrInvalidColumns = errors.New("invalid column list")

// Column is one expected data position: a scalar attribute, or one slot of a
// composite attribute.
type Column struct {
	Key           string
	Type          types.Type
	Index         int // NoIndex for scalar attributes, slot position otherwise
	Header        string
	HeaderPattern *regexp.Regexp
	Required      bool
}

// Composite reports whether the column is a slot of a composite attribute.
func (c Column) Composite() bool {
	return c.Index != NoIndex
}

// Matches reports whether a header cell text designates this column.
func (c Column) Matches(header string) bool {
	return c.HeaderPattern.MatchString(header)
}

func (c Column) String() string {
	if c.Composite() {
		return fmt.Sprintf("%s[%d] (%s)", c.Key, c.Index, c.Header)
	}
	return fmt.Sprintf("%s (%s)", c.Key, c.Header)
}

// Attribute groups the columns sharing one key, in declaration order.
type Attribute struct {
	Key       string
	Type      types.Type
	Composite bool
}

// Specification is an immutable ordered list of columns.
type Specification struct {
	columns    []Column
	attributes []Attribute
}

// New validates columns and returns a Specification over a private copy.
//
// Columns of the same key must be contiguous and be either a
// single NoIndex column or slots 0..n-1 of the type in order.
func New(columns []Column) (*Specification, error) {
	s := &Specification{columns: append([]Column(nil), columns...)}

	seen := make(map[string]bool)
	for i := 0; i < len(s.columns); {
		col := s.columns[i]
		if col.Key == "" {
			return nil, fmt.Errorf("%w: column %d has no key", ErrInvalidColumns, i)
		}
		if seen[col.Key] {
			return nil, fmt.Errorf("%w: key %q declared twice", ErrInvalidColumns, col.Key)
		}
		if col.Type == nil {
			return nil, fmt.Errorf("%w: column %s has no type", ErrInvalidColumns, col)
		}
		seen[col.Key] = true

		span := 1
		if col.Composite() {
			span = col.Type.Slots()
		}
		if i+span > len(s.columns) {
			return nil, fmt.Errorf("%w: attribute %q is missing slots", ErrInvalidColumns, col.Key)
		}
		for j := 0; j < span; j++ {
			slot := s.columns[i+j]
			wantIndex := NoIndex
			if col.Composite() {
				wantIndex = j
			}
			if slot.Key != col.Key || slot.Index != wantIndex {
				return nil, fmt.Errorf("%w: unexpected column %s", ErrInvalidColumns, slot)
			}
			if slot.HeaderPattern == nil {
				return nil, fmt.Errorf("%w: column %s has no header pattern", ErrInvalidColumns, slot)
			}
		}

		s.attributes = append(s.attributes, Attribute{Key: col.Key, Type: col.Type, Composite: col.Composite()})
		i += span
	}

	return s, nil
}

// Columns returns a copy of the column list.
func (s *Specification) Columns() []Column {
	return append([]Column(nil), s.columns...)
}

// Attributes returns the attributes in declaration order.
func (s *Specification) Attributes() []Attribute {
	return append([]Attribute(nil), s.attributes...)
}

// Len returns the number of columns.
func (s *Specification) Len() int {
	return len(s.columns)
}
