package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetcast/internal/batch"
	"github.com/JonMunkholm/sheetcast/internal/messaging"
	"github.com/JonMunkholm/sheetcast/internal/processor"
	"github.com/JonMunkholm/sheetcast/internal/result"
)

// fakeTx records statements. Methods it does not override panic through the
// nil embedded interface.
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (tx *fakeTx) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.db.execErr != nil {
		return pgconn.CommandTag{}, tx.db.execErr
	}
	tx.db.execs = append(tx.db.execs, exec{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (tx *fakeTx) CopyFrom(_ context.Context, table pgx.Identifier, cols []string, src pgx.CopyFromSource) (int64, error) {
	tx.db.copyTable = table
	tx.db.copyCols = cols
	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		tx.db.copied = append(tx.db.copied, values)
		n++
	}
	return n, src.Err()
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.db.commits++
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	tx.db.rollbacks++
	return nil
}

type exec struct {
	sql  string
	args []any
}

type fakeDB struct {
	execErr   error
	execs     []exec
	copyTable pgx.Identifier
	copyCols  []string
	copied    [][]any
	commits   int
	rollbacks int
}

func (db *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{db: db}, nil
}

func mustMessage(t *testing.T, code string, data any, scope messaging.Scope, sd *messaging.ScopeData) messaging.Message {
	t.Helper()
	m, err := messaging.New(code, data, scope, sd, messaging.SeverityError)
	require.NoError(t, err)
	return m
}

func TestRecorder_Migrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, NewRecorder(db).Migrate(context.Background()))

	require.Len(t, db.execs, 1)
	require.True(t, strings.Contains(db.execs[0].sql, "CREATE TABLE IF NOT EXISTS validation_runs"))
	require.Equal(t, 1, db.commits)
}

func TestRecorder_Record(t *testing.T) {
	db := &fakeDB{}
	rec := NewRecorder(db)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rec.now = func() time.Time { return fixed }

	report := batch.Report{
		Name:    "people.csv",
		Outcome: processor.Outcome{Result: result.EmptySuccess[struct{}]()},
		Rows: []processor.RowOutcome{
			{Row: 1, Result: result.Success(processor.Attributes{"name": "Ada"})},
			{
				Row:    2,
				Result: result.EmptyFailure[processor.Attributes](),
				Messages: []messaging.Message{
					mustMessage(t, messaging.CodeMustBeEmail, messaging.ValueOf("nope"), messaging.ScopeCell, &messaging.ScopeData{Row: 2, Col: "B"}),
				},
			},
		},
	}

	run, err := rec.Record(context.Background(), "people", report)
	require.NoError(t, err)
	require.Equal(t, "people", run.Template)
	require.Equal(t, "people.csv", run.Source)
	require.False(t, run.Accepted)
	require.Equal(t, 2, run.Rows)
	require.Equal(t, 1, run.RowsAccepted)
	require.Equal(t, 1, run.RowsRejected)
	require.Equal(t, 1, run.Messages)
	require.Equal(t, fixed, run.CreatedAt)

	require.Len(t, db.execs, 1)
	args := db.execs[0].args
	require.Equal(t, pgtype.UUID{Bytes: run.ID, Valid: true}, args[0])
	require.Equal(t, "people", args[1])

	require.Equal(t, pgx.Identifier{"validation_messages"}, db.copyTable)
	require.Equal(t, messageColumns, db.copyCols)
	require.Len(t, db.copied, 1)

	row := db.copied[0]
	require.Equal(t, pgtype.Int4{Int32: 2, Valid: true}, row[1])
	require.Equal(t, pgtype.Text{String: "B", Valid: true}, row[2])
	require.Equal(t, "CELL", row[3])
	require.Equal(t, "ERROR", row[4])
	require.Equal(t, messaging.CodeMustBeEmail, row[5])
	require.JSONEq(t, `{"value":"\"nope\""}`, string(row[6].([]byte)))

	require.Equal(t, 1, db.commits)
}

func TestRecorder_RecordSheetMessages(t *testing.T) {
	db := &fakeDB{}
	report := batch.Report{
		Name: "bad.csv",
		Outcome: processor.Outcome{
			Result: result.EmptyFailure[struct{}](),
			Messages: []messaging.Message{
				mustMessage(t, messaging.CodeInvalidHeader, "oof", messaging.ScopeCol, &messaging.ScopeData{Col: "A"}),
				mustMessage(t, messaging.CodeMissingColumn, "Foo", messaging.ScopeSheet, nil),
			},
		},
	}

	run, err := NewRecorder(db).Record(context.Background(), "foo", report)
	require.NoError(t, err)
	require.False(t, run.Accepted)
	require.Equal(t, 2, run.Messages)
	require.Len(t, db.copied, 2)

	col := db.copied[0]
	require.Equal(t, pgtype.Int4{}, col[1], "column messages have no row")
	require.Equal(t, pgtype.Text{String: "A", Valid: true}, col[2])

	sheet := db.copied[1]
	require.Equal(t, pgtype.Text{}, sheet[2], "sheet messages have no column")

	var data string
	require.NoError(t, json.Unmarshal(sheet[6].([]byte), &data))
	require.Equal(t, "Foo", data)
}

func TestRecorder_NoMessagesSkipsCopy(t *testing.T) {
	db := &fakeDB{}
	report := batch.Report{
		Name:    "ok.csv",
		Outcome: processor.Outcome{Result: result.EmptySuccess[struct{}]()},
	}

	run, err := NewRecorder(db).Record(context.Background(), "ok", report)
	require.NoError(t, err)
	require.True(t, run.Accepted)
	require.Nil(t, db.copyTable)
	require.Equal(t, 1, db.commits)
}

func TestRecorder_InsertError(t *testing.T) {
	boom := errors.New("connection reset")
	db := &fakeDB{execErr: boom}

	_, err := NewRecorder(db).Record(context.Background(), "x", batch.Report{
		Outcome: processor.Outcome{Result: result.EmptySuccess[struct{}]()},
	})
	require.ErrorIs(t, err, boom)
	require.Zero(t, db.commits)
	require.Equal(t, 1, db.rollbacks)
}
