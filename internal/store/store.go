// Package store records validation runs in Postgres: one row per processed
// source, one row per emitted message.
package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sheetcast/internal/batch"
	"github.com/JonMunkholm/sheetcast/internal/messaging"
)

//go:embed schema.sql
var schemaSQL string

// TxBeginner starts transactions. Satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

var messageColumns = []string{"run_id", "row_number", "col", "scope", "severity", "code", "code_data"}

// Run is a recorded validation run.
type Run struct {
	ID           uuid.UUID
	Template     string
	Source       string
	Accepted     bool
	Rows         int
	RowsAccepted int
	RowsRejected int
	Messages     int
	CreatedAt    time.Time
}

// Recorder writes runs and their messages.
type Recorder struct {
	db  TxBeginner
	now func() time.Time
}

// NewRecorder returns a recorder writing through db.
func NewRecorder(db TxBeginner) *Recorder {
	return &Recorder{db: db, now: time.Now}
}

// Migrate creates the tables if they do not exist.
func (r *Recorder) Migrate(ctx context.Context) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return tx.Commit(ctx)
}

// Record stores one report under template, atomically.
func (r *Recorder) Record(ctx context.Context, template string, report batch.Report) (Run, error) {
	run := summarize(template, report)
	run.ID = uuid.New()
	run.CreatedAt = r.now().UTC()

	rows, err := messageRows(run.ID, report)
	if err != nil {
		return Run{}, err
	}
	run.Messages = len(rows)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return Run{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	_, err = tx.Exec(ctx,
		`INSERT INTO validation_runs
			(id, template, source, accepted, rows_total, rows_accepted, rows_rejected, messages, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		pgtype.UUID{Bytes: run.ID, Valid: true},
		run.Template,
		run.Source,
		run.Accepted,
		run.Rows,
		run.RowsAccepted,
		run.RowsRejected,
		run.Messages,
		pgtype.Timestamptz{Time: run.CreatedAt, Valid: true},
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}

	if len(rows) > 0 {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{"validation_messages"}, messageColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return Run{}, fmt.Errorf("copy messages: %w", err)
		}
		if int(n) != len(rows) {
			return Run{}, fmt.Errorf("copy messages: wrote %d of %d", n, len(rows))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Run{}, fmt.Errorf("commit run: %w", err)
	}
	return run, nil
}

func summarize(template string, report batch.Report) Run {
	run := Run{
		Template: template,
		Source:   report.Name,
		Accepted: report.Accepted(),
		Rows:     len(report.Rows),
	}
	for _, row := range report.Rows {
		if row.Accepted() {
			run.RowsAccepted++
		} else {
			run.RowsRejected++
		}
	}
	return run
}

// messageRows flattens sheet and row messages into COPY rows.
func messageRows(runID uuid.UUID, report batch.Report) ([][]any, error) {
	id := pgtype.UUID{Bytes: runID, Valid: true}

	var rows [][]any
	add := func(m messaging.Message) error {
		data, err := json.Marshal(m.CodeData)
		if err != nil {
			return fmt.Errorf("encode %s code data: %w", m.Code, err)
		}

		var row pgtype.Int4
		var col pgtype.Text
		if m.ScopeData != nil {
			col = pgtype.Text{String: m.ScopeData.Col, Valid: true}
			if m.ScopeData.Row > 0 {
				row = pgtype.Int4{Int32: int32(m.ScopeData.Row), Valid: true}
			}
		}

		rows = append(rows, []any{id, row, col, string(m.Scope), string(m.Severity), m.Code, data})
		return nil
	}

	for _, m := range report.Outcome.Messages {
		if err := add(m); err != nil {
			return nil, err
		}
	}
	for _, r := range report.Rows {
		for _, m := range r.Messages {
			if err := add(m); err != nil {
				return nil, err
			}
		}
	}
	return rows, nil
}
