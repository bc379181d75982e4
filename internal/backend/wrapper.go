package backend

import "context"

// Wrapper reads rows already held in memory. The source is a [][]any or a
// [][]string.
type Wrapper struct{}

func (Wrapper) Open(_ context.Context, source any) (Rows, error) {
	var rows [][]any
	switch s := source.(type) {
	case [][]any:
		rows = s
	case [][]string:
		rows = make([][]any, len(s))
		for i, r := range s {
			rows[i] = make([]any, len(r))
			for j, v := range r {
				rows[i][j] = v
			}
		}
	default:
		return nil, unsupported(Wrapper{}, source)
	}
	return &sliceRows{rows: rows, pos: -1}, nil
}

type sliceRows struct {
	rows   [][]any
	pos    int
	closed bool
}

func (r *sliceRows) Next() bool {
	if r.closed || r.pos+1 >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Row() []any {
	if r.pos < 0 || r.pos >= len(r.rows) {
		return nil
	}
	return append([]any(nil), r.rows[r.pos]...)
}

func (r *sliceRows) Err() error { return nil }

func (r *sliceRows) Close() error {
	r.closed = true
	return nil
}
