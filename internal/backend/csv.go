package backend

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSV reads comma-separated input. The source is an io.Reader, a []byte, or
// the path of a file. Files opened by the backend are closed by Rows.Close;
// readers handed in stay owned by the caller.
//
// Input is cleaned while streaming: a leading BOM is dropped and invalid
// UTF-8 bytes are replaced with '?'. Every cell is a string.
type CSV struct {
	// Comma is the field delimiter. Zero means ','.
	Comma rune
	// Comment, if not zero, starts a comment line.
	Comment rune
}

func (c CSV) Open(_ context.Context, source any) (Rows, error) {
	var (
		r      io.Reader
		closer io.Closer
	)
	switch s := source.(type) {
	case string:
		f, err := os.Open(s)
		if err != nil {
			return nil, fmt.Errorf("open csv: %w", err)
		}
		r, closer = f, f
	case []byte:
		r = bytes.NewReader(s)
	case io.Reader:
		r = s
	default:
		return nil, unsupported(c, source)
	}

	counter := wrapStream(r)
	cr := csv.NewReader(counter)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if c.Comma != 0 {
		cr.Comma = c.Comma
	}
	cr.Comment = c.Comment

	return &csvRows{reader: cr, counter: counter, closer: closer}, nil
}

type csvRows struct {
	reader  *csv.Reader
	counter *countingReader
	closer  io.Closer
	row     []any
	err     error
	done    bool
}

func (r *csvRows) Next() bool {
	if r.done {
		return false
	}

	record, err := r.reader.Read()
	if err != nil {
		r.done = true
		r.row = nil
		if !errors.Is(err, io.EOF) {
			r.err = err
		}
		return false
	}

	r.row = make([]any, len(record))
	for i, v := range record {
		r.row[i] = v
	}
	return true
}

func (r *csvRows) Row() []any { return r.row }

func (r *csvRows) Err() error { return r.err }

func (r *csvRows) BytesRead() int64 { return r.counter.Count() }

func (r *csvRows) Close() error {
	r.done = true
	if r.closer == nil {
		return nil
	}
	err := r.closer.Close()
	r.closer = nil
	return err
}
