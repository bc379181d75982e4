package processor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetcast/internal/backend"
	"github.com/JonMunkholm/sheetcast/internal/messaging"
	"github.com/JonMunkholm/sheetcast/internal/result"
	"github.com/JonMunkholm/sheetcast/internal/specification"
	"github.com/JonMunkholm/sheetcast/internal/template"
	"github.com/JonMunkholm/sheetcast/internal/types"
)

func reverseString() types.Scalar {
	return types.String().Cast(func(v any, _ *messaging.Messenger) (any, error) {
		r := []rune(v.(string))
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return string(r), nil
	})
}

// fooBarSpec is foo: reverse_string!, bar: [string, scalar, email, scalar, scalar!].
func fooBarSpec(t *testing.T) *specification.Specification {
	t.Helper()
	container := types.NewContainer(types.WithScalars(map[string]types.ScalarFactory{
		"reverse_string": reverseString,
	}))

	tpl, err := template.New("foo_bar", []template.Declaration{
		{Key: "foo", Type: "reverse_string!"},
		{Key: "bar", Type: []string{"string", "scalar", "email", "scalar", "scalar!"}},
	})
	require.NoError(t, err)

	spec, err := tpl.Apply(template.NewConfig(container))
	require.NoError(t, err)
	return spec
}

// trackingBackend records whether the rows it opened were closed.
type trackingBackend struct {
	backend.Backend
	mu     sync.Mutex
	opened int
	closed int
}

func (b *trackingBackend) Open(ctx context.Context, source any) (backend.Rows, error) {
	rows, err := b.Backend.Open(ctx, source)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return &trackingRows{Rows: rows, b: b}, nil
}

func (b *trackingBackend) released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened > 0 && b.opened == b.closed
}

type trackingRows struct {
	backend.Rows
	b *trackingBackend
}

func (r *trackingRows) Close() error {
	r.b.mu.Lock()
	r.b.closed++
	r.b.mu.Unlock()
	return r.Rows.Close()
}

var scenarioA = [][]any{
	{"foo", "bar 3", "bar 5", "bar 1"},
	{"hello", "foo@bar.baz", 3.14, nil},
	{"world", "foo@bar.baz", 3.14, nil},
	{"world", "boudiou !", 3.14, nil},
}

func TestProcess_ScenarioA(t *testing.T) {
	b := &trackingBackend{Backend: backend.Wrapper{}}
	p := New(b, fooBarSpec(t))

	outcome, rows, err := p.Collect(context.Background(), scenarioA)
	require.NoError(t, err)
	require.True(t, b.released())

	require.True(t, outcome.Result.Equal(result.EmptySuccess[struct{}]()), "got %s", outcome.Result)
	require.Empty(t, outcome.Messages)
	require.Len(t, rows, 3)

	for i, want := range []string{"olleh", "dlrow"} {
		row := rows[i]
		require.Equal(t, i+1, row.Row)
		require.Empty(t, row.Messages)

		attrs, err := row.Result.Success()
		require.NoError(t, err)
		require.Equal(t, Attributes{
			"foo": want,
			"bar": []any{nil, nil, "foo@bar.baz", nil, 3.14},
		}, attrs)
	}

	third := rows[2]
	require.Equal(t, 3, third.Row)
	require.True(t, third.Result.IsFailure())
	require.True(t, third.Result.IsEmpty())
	require.Len(t, third.Messages, 1)

	msg := third.Messages[0]
	require.Equal(t, messaging.CodeMustBeEmail, msg.Code)
	require.Equal(t, messaging.ScopeCell, msg.Scope)
	require.Equal(t, &messaging.ScopeData{Row: 3, Col: "B"}, msg.ScopeData)
	require.Equal(t, messaging.ValueData{Value: `"boudiou !"`}, msg.CodeData)
	require.Equal(t, messaging.SeverityError, msg.Severity)
}

func TestProcess_ScenarioB(t *testing.T) {
	b := &trackingBackend{Backend: backend.Wrapper{}}
	p := New(b, fooBarSpec(t))

	calls := 0
	outcome, err := p.Process(context.Background(), [][]any{
		{"oof", "bar 3", "", "bar 1"},
		{"hello", "foo@bar.baz", 3.14, nil},
	}, func(RowOutcome) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.True(t, b.released())
	require.Zero(t, calls)

	require.True(t, outcome.Result.Equal(result.EmptyFailure[struct{}]()), "got %s", outcome.Result)
	require.Len(t, outcome.Messages, 4)

	type summary struct {
		code  string
		scope messaging.Scope
		col   string
		data  any
	}
	var got []summary
	for _, m := range outcome.Messages {
		s := summary{code: m.Code, scope: m.Scope, data: m.CodeData}
		if m.ScopeData != nil {
			s.col = m.ScopeData.Col
		}
		got = append(got, s)
	}
	require.Equal(t, []summary{
		{code: messaging.CodeInvalidHeader, scope: messaging.ScopeCol, col: "A", data: "oof"},
		{code: messaging.CodeInvalidHeader, scope: messaging.ScopeCol, col: "C", data: nil},
		{code: messaging.CodeMissingColumn, scope: messaging.ScopeSheet, data: "Foo"},
		{code: messaging.CodeMissingColumn, scope: messaging.ScopeSheet, data: "Bar 5"},
	}, got)
}

func TestProcess_Idempotent(t *testing.T) {
	p := New(backend.Wrapper{}, fooBarSpec(t))

	first, firstRows, err := p.Collect(context.Background(), scenarioA)
	require.NoError(t, err)
	second, secondRows, err := p.Collect(context.Background(), scenarioA)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, firstRows, secondRows)
}

func TestProcess_EmptySheet(t *testing.T) {
	b := &trackingBackend{Backend: backend.Wrapper{}}
	outcome, err := New(b, fooBarSpec(t)).Process(context.Background(), [][]any{}, func(RowOutcome) error {
		t.Fatal("callback called for an empty sheet")
		return nil
	})
	require.NoError(t, err)
	require.True(t, b.released())
	require.False(t, outcome.Accepted())
	require.Len(t, outcome.Messages, 1)
	require.Equal(t, messaging.CodeEmptySheet, outcome.Messages[0].Code)
	require.Equal(t, messaging.ScopeSheet, outcome.Messages[0].Scope)
}

func TestProcess_HeaderOnly(t *testing.T) {
	outcome, rows, err := New(backend.Wrapper{}, fooBarSpec(t)).Collect(context.Background(), scenarioA[:1])
	require.NoError(t, err)
	require.True(t, outcome.Accepted())
	require.Empty(t, rows)
}

func TestProcess_CallbackErrorReleases(t *testing.T) {
	b := &trackingBackend{Backend: backend.Wrapper{}}
	p := New(b, fooBarSpec(t))

	stop := errors.New("stop")
	calls := 0
	_, err := p.Process(context.Background(), scenarioA, func(RowOutcome) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, calls)
	require.True(t, b.released())
}

func TestProcess_CastErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	container := types.NewContainer(types.WithScalars(map[string]types.ScalarFactory{
		"broken": func() types.Scalar {
			return types.NewScalar(func(any, *messaging.Messenger) (any, error) { return nil, boom })
		},
	}))
	tpl, err := template.New("broken", []template.Declaration{{Key: "x", Type: "broken"}})
	require.NoError(t, err)
	spec, err := tpl.Apply(template.NewConfig(container))
	require.NoError(t, err)

	b := &trackingBackend{Backend: backend.Wrapper{}}
	_, err = New(b, spec).Process(context.Background(), [][]any{{"x"}, {"value"}}, func(RowOutcome) error { return nil })
	require.ErrorIs(t, err, boom)
	require.True(t, b.released())
}

func TestProcess_OpenError(t *testing.T) {
	_, err := New(backend.Wrapper{}, fooBarSpec(t)).Process(context.Background(), "not rows", func(RowOutcome) error { return nil })
	require.ErrorIs(t, err, backend.ErrUnsupportedSource)
}

func TestProcess_Canceled(t *testing.T) {
	b := &trackingBackend{Backend: backend.Wrapper{}}
	p := New(b, fooBarSpec(t), WithContextCheckInterval(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	_, err := p.Process(ctx, scenarioA, func(RowOutcome) error {
		calls++
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
	require.True(t, b.released())

	_, err = p.Process(ctx, scenarioA, func(RowOutcome) error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestProcess_ShortRowsAndWarnings(t *testing.T) {
	tpl, err := template.New("people", []template.Declaration{
		{Key: "name", Type: "string!"},
		{Key: "email", Type: "email"},
	})
	require.NoError(t, err)
	spec, err := tpl.Apply(template.NewConfig(nil))
	require.NoError(t, err)

	_, rows, err := New(backend.Wrapper{}, spec).Collect(context.Background(), [][]any{
		{"Name", "Email"},
		{" Ada "},
		{nil, "ada@example.com"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, Attributes{"name": "Ada", "email": nil}, rows[0].Result.MustSuccess())
	require.Len(t, rows[0].Messages, 1)
	require.Equal(t, messaging.CodeCleanedString, rows[0].Messages[0].Code)
	require.Equal(t, messaging.SeverityWarning, rows[0].Messages[0].Severity)

	require.True(t, rows[1].Result.IsFailure())
	require.Len(t, rows[1].Messages, 1)
	require.Equal(t, messaging.CodeMustExist, rows[1].Messages[0].Code)
	require.Equal(t, &messaging.ScopeData{Row: 2, Col: "A"}, rows[1].Messages[0].ScopeData)
}

func TestProcess_CSVMatchesWrapper(t *testing.T) {
	tpl, err := template.New("contacts", []template.Declaration{
		{Key: "name", Type: "string!"},
		{Key: "emails", Type: []string{"email!", "email"}},
		{Key: "active", Type: "boolsy"},
	})
	require.NoError(t, err)
	spec, err := tpl.Apply(template.NewConfig(nil))
	require.NoError(t, err)

	records := [][]string{
		{"Emails 1", "Name", "Active", "Emails 2"},
		{"ada@example.com", "Ada", "yes", ""},
		{"not-an-email", "Bob", "no", "bob@example.com"},
		{"cy@example.com", "", "maybe", ""},
	}
	var csvInput strings.Builder
	for _, r := range records {
		csvInput.WriteString(strings.Join(r, ",") + "\n")
	}

	wrapOutcome, wrapRows, err := New(backend.Wrapper{}, spec).Collect(context.Background(), records)
	require.NoError(t, err)
	csvOutcome, csvRows, err := New(backend.CSV{}, spec).Collect(context.Background(), strings.NewReader(csvInput.String()))
	require.NoError(t, err)

	require.Equal(t, wrapOutcome, csvOutcome)
	require.Equal(t, wrapRows, csvRows)

	require.Equal(t, Attributes{
		"name":   "Ada",
		"emails": []any{"ada@example.com", nil},
		"active": true,
	}, csvRows[0].Result.MustSuccess())
	require.True(t, csvRows[1].Result.IsFailure())
	require.Len(t, csvRows[2].Messages, 2)
}

type recordingObserver struct {
	mu     sync.Mutex
	rows   int
	sheets []Stats
}

func (o *recordingObserver) ObserveRow(RowOutcome) {
	o.mu.Lock()
	o.rows++
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveSheet(_ Outcome, s Stats) {
	o.mu.Lock()
	o.sheets = append(o.sheets, s)
	o.mu.Unlock()
}

func TestProcess_Observer(t *testing.T) {
	obs := &recordingObserver{}
	p := New(backend.Wrapper{}, fooBarSpec(t), WithObserver(obs))

	_, _, err := p.Collect(context.Background(), scenarioA)
	require.NoError(t, err)

	require.Equal(t, 3, obs.rows)
	require.Len(t, obs.sheets, 1)
	require.Equal(t, 3, obs.sheets[0].Rows)
	require.Equal(t, 2, obs.sheets[0].Accepted)
	require.Equal(t, 1, obs.sheets[0].Rejected)
	require.Equal(t, 1, obs.sheets[0].Messages)
}
