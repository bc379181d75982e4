// Package processor validates and casts whole sheets: it opens a source
// through a backend, matches the header row, casts every data row, and hands
// one RowOutcome per row to the caller.
package processor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/sheetcast/internal/backend"
	"github.com/JonMunkholm/sheetcast/internal/messaging"
	"github.com/JonMunkholm/sheetcast/internal/result"
	"github.com/JonMunkholm/sheetcast/internal/specification"
	"github.com/JonMunkholm/sheetcast/internal/types"
)

// ContextCheckInterval is how often, in rows, Process checks for context
// cancellation by default.
const ContextCheckInterval = 100

// RowFunc receives each data row in order. Returning an error stops
// processing; Process then returns that error.
type RowFunc func(RowOutcome) error

// SheetProcessor is immutable and safe for concurrent Process calls.
type SheetProcessor struct {
	backend    backend.Backend
	spec       *specification.Specification
	logger     *slog.Logger
	observer   Observer
	checkEvery int
}

// Option configures a SheetProcessor.
type Option func(*SheetProcessor)

// WithLogger sets the logger used for debug output. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *SheetProcessor) { p.logger = l }
}

// WithObserver registers an observer for row and sheet completion.
func WithObserver(o Observer) Option {
	return func(p *SheetProcessor) { p.observer = o }
}

// WithContextCheckInterval overrides ContextCheckInterval. Values below 1
// check every row.
func WithContextCheckInterval(rows int) Option {
	return func(p *SheetProcessor) { p.checkEvery = max(rows, 1) }
}

// New returns a processor reading sources through b and validating them
// against spec.
func New(b backend.Backend, spec *specification.Specification, opts ...Option) *SheetProcessor {
	p := &SheetProcessor{
		backend:    b,
		spec:       spec,
		checkEvery: ContextCheckInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Specification returns the specification rows are validated against.
func (p *SheetProcessor) Specification() *specification.Specification {
	return p.spec
}

// Process reads source and calls fn once per data row.
//
// Structural problems (empty sheet, bad header row) are reported through a
// failed Outcome, and fn is never called. Row problems are reported through
// each RowOutcome and never fail the sheet. The returned error is reserved
// for backend failures, cancellation, cast bugs and errors returned by fn.
// The source is released before Process returns, on every path.
func (p *SheetProcessor) Process(ctx context.Context, source any, fn RowFunc) (Outcome, error) {
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	rows, err := p.backend.Open(ctx, source)
	if err != nil {
		return Outcome{}, fmt.Errorf("open source: %w", err)
	}
	defer rows.Close()

	stats := Stats{}
	finish := func(o Outcome) Outcome {
		stats.Duration = time.Since(start)
		stats.Messages += len(o.Messages)
		if bc, ok := rows.(backend.ByteCounter); ok {
			stats.Bytes = bc.BytesRead()
		}
		p.logger.Debug("sheet processed",
			"accepted", o.Accepted(),
			"rows", stats.Rows,
			"rows_accepted", stats.Accepted,
			"rows_rejected", stats.Rejected,
			"messages", stats.Messages,
			"bytes", stats.Bytes,
			"duration_ms", stats.Duration.Milliseconds(),
		)
		if p.observer != nil {
			p.observer.ObserveSheet(o, stats)
		}
		return o
	}

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return Outcome{}, fmt.Errorf("read rows: %w", err)
		}
		m := messaging.NewMessenger()
		m.Error(messaging.CodeEmptySheet, nil)
		return finish(rejected(m.Messages())), nil
	}

	match, msgs := p.spec.Match(rows.Row())
	if len(msgs) > 0 {
		return finish(rejected(msgs)), nil
	}

	plan := newRowPlan(p.spec, match)

	for n := 1; rows.Next(); n++ {
		if n%p.checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return Outcome{}, fmt.Errorf("canceled at row %d: %w", n, err)
			}
		}

		outcome, err := plan.cast(n, rows.Row())
		if err != nil {
			return Outcome{}, err
		}

		stats.Rows++
		stats.Messages += len(outcome.Messages)
		if outcome.Accepted() {
			stats.Accepted++
		} else {
			stats.Rejected++
		}
		if p.observer != nil {
			p.observer.ObserveRow(outcome)
		}

		if err := fn(outcome); err != nil {
			return Outcome{}, fmt.Errorf("row %d: %w", n, err)
		}
	}
	if err := rows.Err(); err != nil {
		return Outcome{}, fmt.Errorf("read rows: %w", err)
	}

	return finish(Outcome{Result: result.EmptySuccess[struct{}]()}), nil
}

// Collect processes source and returns every RowOutcome.
func (p *SheetProcessor) Collect(ctx context.Context, source any) (Outcome, []RowOutcome, error) {
	var rows []RowOutcome
	outcome, err := p.Process(ctx, source, func(r RowOutcome) error {
		rows = append(rows, r)
		return nil
	})
	return outcome, rows, err
}

func rejected(msgs []messaging.Message) Outcome {
	return Outcome{Result: result.EmptyFailure[struct{}](), Messages: msgs}
}

// cell is a matched physical column and where its value goes.
type cell struct {
	physical int
	letter   string
	column   specification.Column
	attr     int
	slot     int
}

type attribute struct {
	key   string
	typ   types.Type
	slots int
	// letter of the first matched physical column, "" when none matched
	letter string
}

// rowPlan is the per-sheet casting plan derived from a header match.
type rowPlan struct {
	cells []cell
	attrs []attribute
}

func newRowPlan(spec *specification.Specification, match *specification.Match) *rowPlan {
	plan := &rowPlan{}
	index := make(map[string]int)

	for i, a := range spec.Attributes() {
		slots := 1
		if a.Composite {
			slots = a.Type.Slots()
		}
		plan.attrs = append(plan.attrs, attribute{key: a.Key, typ: a.Type, slots: slots})
		index[a.Key] = i
	}

	for _, physical := range match.Indexes() {
		col, _ := match.Column(physical)
		c := cell{
			physical: physical,
			letter:   messaging.ColumnLetter(physical),
			column:   col,
			attr:     index[col.Key],
		}
		if col.Composite() {
			c.slot = col.Index
		}
		if plan.attrs[c.attr].letter == "" {
			plan.attrs[c.attr].letter = c.letter
		}
		plan.cells = append(plan.cells, c)
	}

	return plan
}

// cast casts one data row. Cells beyond the end of a short row are nil.
func (p *rowPlan) cast(n int, row []any) (RowOutcome, error) {
	m := messaging.NewMessenger()

	values := make([][]any, len(p.attrs))
	for i, a := range p.attrs {
		values[i] = make([]any, a.slots)
	}

	for _, c := range p.cells {
		var raw any
		if c.physical < len(row) {
			raw = row[c.physical]
		}

		v, ok, err := c.column.Type.CastCell(c.column.Index, raw, c.column.Required, m.Cell(n, c.letter))
		if err != nil {
			return RowOutcome{}, fmt.Errorf("row %d column %s: %w", n, c.letter, err)
		}
		if ok {
			values[c.attr][c.slot] = v
		}
	}

	out := RowOutcome{Row: n}
	if m.HasErrors() {
		out.Result = result.EmptyFailure[Attributes]()
		out.Messages = m.Messages()
		return out, nil
	}

	attrs := make(Attributes, len(p.attrs))
	for i, a := range p.attrs {
		scope := m.Sheet()
		if a.letter != "" {
			scope = m.Cell(n, a.letter)
		}
		v, ok := a.typ.Compose(values[i], scope)
		if !ok {
			out.Result = result.EmptyFailure[Attributes]()
			out.Messages = m.Messages()
			return out, nil
		}
		attrs[a.key] = v
	}

	out.Result = result.Success(attrs)
	out.Messages = m.Messages()
	return out, nil
}
