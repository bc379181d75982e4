// Package backend turns a data source into a sequence of rows of raw cell
// values. The first row of a sheet is its header row.
package backend

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnsupportedSource is returned by Open for a source of the wrong kind.
var ErrUnsupportedSource = errors.New("unsupported source")

// Backend opens sources for reading.
type Backend interface {
	// Open prepares source for iteration. The caller must Close the
	// returned Rows on every path.
	Open(ctx context.Context, source any) (Rows, error)
}

// Rows iterates over the rows of an opened source.
//
//	for rows.Next() {
//		row := rows.Row()
//	}
//	if err := rows.Err(); err != nil { ... }
type Rows interface {
	Next() bool
	// Row returns the current row. The slice is owned by the caller.
	Row() []any
	Err() error
	// Close releases the source. It is safe to call more than once.
	Close() error
}

// ByteCounter is implemented by Rows that know how many bytes of input they
// have consumed.
type ByteCounter interface {
	BytesRead() int64
}

func unsupported(b Backend, source any) error {
	return fmt.Errorf("%w: %T cannot open %T", ErrUnsupportedSource, b, source)
}
