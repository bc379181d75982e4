package types

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/sheetcast/internal/messaging"
)

// Type is a compiled, bound casting unit shared by the columns of one
// attribute. Implementations are immutable.
type Type interface {
	// Slots is the number of columns the type spans: 1 for scalars.
	Slots() int

	// CastCell casts the raw value of slot index. Scalar types ignore index.
	// The bool result is false when the cell was rejected with a message.
	CastCell(index int, value any, required bool, m *messaging.Messenger) (any, bool, error)

	// Compose turns the casted slot values (len == Slots()) into the
	// attribute value.
	Compose(values []any, m *messaging.Messenger) (any, bool)

	String() string
}

type scalarType struct {
	name   string
	scalar Scalar
}

func (t *scalarType) Slots() int { return 1 }

func (t *scalarType) CastCell(_ int, value any, required bool, m *messaging.Messenger) (any, bool, error) {
	return t.scalar.Apply(value, required, m)
}

func (t *scalarType) Compose(values []any, _ *messaging.Messenger) (any, bool) {
	if len(values) == 0 {
		return nil, true
	}
	return values[0], true
}

func (t *scalarType) String() string { return t.name }

type compositeType struct {
	kind    string
	names   []string
	scalars []Scalar
	build   CompositeBuilder
}

func (t *compositeType) Slots() int { return len(t.scalars) }

func (t *compositeType) CastCell(index int, value any, required bool, m *messaging.Messenger) (any, bool, error) {
	if index < 0 || index >= len(t.scalars) {
		return nil, false, fmt.Errorf("%s: slot %d out of range", t, index)
	}
	return t.scalars[index].Apply(value, required, m)
}

func (t *compositeType) Compose(values []any, m *messaging.Messenger) (any, bool) {
	return t.build(values, m)
}

func (t *compositeType) String() string {
	return t.kind + "[" + strings.Join(t.names, ", ") + "]"
}
