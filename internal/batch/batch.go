// Package batch validates several sources concurrently with one processor.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/sheetcast/internal/processor"
)

// Source is one named input handed to the processor backend.
type Source struct {
	Name   string
	Source any
}

// Report is the result of one source. Err is set when processing failed
// outright; a rejected sheet or row is not an error.
type Report struct {
	Name    string
	Outcome processor.Outcome
	Rows    []processor.RowOutcome
	Err     error
}

// Accepted reports whether the sheet and all of its rows were accepted.
func (r Report) Accepted() bool {
	if r.Err != nil || !r.Outcome.Accepted() {
		return false
	}
	for _, row := range r.Rows {
		if !row.Accepted() {
			return false
		}
	}
	return true
}

// Rejected returns the rejected rows.
func (r Report) Rejected() []processor.RowOutcome {
	var out []processor.RowOutcome
	for _, row := range r.Rows {
		if !row.Accepted() {
			out = append(out, row)
		}
	}
	return out
}

// PanicError wraps a value recovered while processing a source.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("panic while processing: %v", e.Value)
}

// Run processes sources with at most jobs running at once (jobs < 1 uses
// GOMAXPROCS). Reports come back in the order of sources. A failing source
// does not stop the others; Run itself only fails when ctx is done.
func Run(ctx context.Context, p *processor.SheetProcessor, sources []Source, jobs int) ([]Report, error) {
	if jobs < 1 {
		jobs = runtime.GOMAXPROCS(0)
	}

	reports := make([]Report, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			reports[i] = runOne(gctx, p, src)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return reports, err
	}

	slog.Debug("batch completed", "sources", len(sources), "jobs", jobs)
	return reports, nil
}

func runOne(ctx context.Context, p *processor.SheetProcessor, src Source) (report Report) {
	report.Name = src.Name
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				report.Err = err
				return
			}
			report.Err = PanicError{Value: r}
		}
	}()

	outcome, rows, err := p.Collect(ctx, src.Source)
	report.Outcome = outcome
	report.Rows = rows
	if err != nil {
		report.Err = fmt.Errorf("%s: %w", src.Name, err)
	}
	return report
}
