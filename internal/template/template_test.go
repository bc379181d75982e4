package template

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetcast/internal/messaging"
	"github.com/JonMunkholm/sheetcast/internal/types"
)

func fooBarTemplate(t *testing.T) *Template {
	t.Helper()
	tpl, err := New("foo_bar", []Declaration{
		{Key: "foo", Type: "string!"},
		{Key: "bar", Type: []string{"scalar", "scalar", "email!", "scalar", "scalar!"}},
	})
	require.NoError(t, err)
	return tpl
}

func TestParseScalar(t *testing.T) {
	tests := []struct {
		tag     string
		want    Scalar
		wantErr bool
	}{
		{tag: "email", want: Scalar{Name: "email"}},
		{tag: "email!", want: Scalar{Name: "email", Required: true}},
		{tag: " string! ", want: Scalar{Name: "string", Required: true}},
		{tag: "", wantErr: true},
		{tag: "!", wantErr: true},
		{tag: "email!!", wantErr: true},
		{tag: "two words", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseScalar(tt.tag)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTemplate)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.Equal(t, strings.TrimSpace(tt.tag), got.String())
		})
	}
}

func TestNewAttribute(t *testing.T) {
	tests := []struct {
		name     string
		decl     any
		wantKind string
		wantLen  int
		wantErr  bool
	}{
		{name: "scalar tag", decl: "email!", wantLen: 1},
		{name: "string slice", decl: []string{"email", "email"}, wantKind: "array", wantLen: 2},
		{name: "any slice", decl: []any{"email", "string!"}, wantKind: "array", wantLen: 2},
		{name: "composite", decl: Composite{Kind: "pair", Scalars: []string{"string", "numeric"}}, wantKind: "pair", wantLen: 2},
		{name: "decoded map", decl: map[string]any{"composite": "array", "scalars": []any{"string"}}, wantKind: "array", wantLen: 1},

		{name: "empty slice", decl: []string{}, wantErr: true},
		{name: "non-string slot", decl: []any{"email", 3}, wantErr: true},
		{name: "composite without kind", decl: Composite{Scalars: []string{"string"}}, wantErr: true},
		{name: "map without kind", decl: map[string]any{"scalars": []any{"string"}}, wantErr: true},
		{name: "unsupported", decl: 42, wantErr: true},
		{name: "malformed tag", decl: "!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr, err := NewAttribute("key", tt.decl)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTemplate)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "key", attr.Key())
			require.Equal(t, tt.wantKind, attr.Kind())
			require.Equal(t, tt.wantKind != "", attr.Composite())
			require.Len(t, attr.Scalars(), tt.wantLen)
		})
	}

	_, err := NewAttribute(" ", "string")
	require.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestAttribute_Columns(t *testing.T) {
	cfg := NewConfig(nil)

	scalar, err := NewAttribute("foo", "string!")
	require.NoError(t, err)
	cols, err := scalar.Columns(cfg)
	require.NoError(t, err)
	require.Len(t, cols, 1)
	require.Equal(t, NoIndex, cols[0].Index)
	require.Equal(t, "Foo", cols[0].Header)
	require.True(t, cols[0].Required)

	composite, err := NewAttribute("bar", []string{"scalar", "scalar", "email!", "scalar", "scalar!"})
	require.NoError(t, err)
	cols, err = composite.Columns(cfg)
	require.NoError(t, err)
	require.Len(t, cols, 5)

	for i, col := range cols {
		require.Equal(t, "bar", col.Key)
		require.Equal(t, i, col.Index)
		require.Equal(t, "Bar "+string(rune('1'+i)), col.Header)
		require.Equal(t, i == 2 || i == 4, col.Required, "slot %d", i)
		require.Same(t, cols[0].Type, col.Type, "slots share one compiled type")
	}

	again, err := composite.Columns(cfg)
	require.NoError(t, err)
	again[0].Key = "changed"
	require.Equal(t, "bar", cols[0].Key)
}

func TestAttribute_ColumnsUnknownType(t *testing.T) {
	attr, err := NewAttribute("foo", "reverse_string")
	require.NoError(t, err)

	_, err = attr.Columns(NewConfig(nil))
	require.ErrorIs(t, err, types.ErrUnknownScalar)

	attr, err = NewAttribute("foo", Composite{Kind: "set", Scalars: []string{"string"}})
	require.NoError(t, err)
	_, err = attr.Columns(NewConfig(nil))
	require.ErrorIs(t, err, types.ErrUnknownComposite)
}

func TestConfig_CustomTypes(t *testing.T) {
	container := types.NewContainer(types.WithScalars(map[string]types.ScalarFactory{
		"reverse_string": func() types.Scalar {
			return types.String().Cast(func(v any, _ *messaging.Messenger) (any, error) {
				r := []rune(v.(string))
				for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
					r[i], r[j] = r[j], r[i]
				}
				return string(r), nil
			})
		},
	}))

	tpl, err := New("custom", []Declaration{{Key: "name", Type: "reverse_string!"}})
	require.NoError(t, err)

	spec, err := tpl.Apply(NewConfig(container))
	require.NoError(t, err)

	col := spec.Columns()[0]
	got, ok, err := col.Type.CastCell(col.Index, "hello", col.Required, messaging.NewMessenger().Cell(1, "A"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "olleh", got)
}

func TestCapitalize(t *testing.T) {
	tests := []struct{ in, want string }{
		{"foo", "Foo"},
		{"FOO", "Foo"},
		{"first_name", "First_name"},
		{"émail", "Émail"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Capitalize(tt.in); got != tt.want {
			t.Errorf("Capitalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultConfig_Header(t *testing.T) {
	cfg := NewConfig(nil)

	label, pattern := cfg.Header("bar", 4)
	require.Equal(t, "Bar 5", label)
	require.True(t, pattern.MatchString("bar 5"))
	require.True(t, pattern.MatchString("  BAR 5 "))
	require.False(t, pattern.MatchString("bar 50"))
	require.False(t, pattern.MatchString("foo bar 5"))

	label, pattern = cfg.Header("a.b", NoIndex)
	require.Equal(t, "A.b", label)
	require.False(t, pattern.MatchString("axb"), "label is matched literally")
}

func TestTemplate_Apply(t *testing.T) {
	tpl := fooBarTemplate(t)

	spec, err := tpl.Apply(NewConfig(nil))
	require.NoError(t, err)
	require.Equal(t, 6, spec.Len())

	var headers []string
	for _, c := range spec.Columns() {
		headers = append(headers, c.Header)
	}
	require.Equal(t, []string{"Foo", "Bar 1", "Bar 2", "Bar 3", "Bar 4", "Bar 5"}, headers)

	attrs := spec.Attributes()
	require.Len(t, attrs, 2)
	require.Equal(t, "foo", attrs[0].Key)
	require.Equal(t, "bar", attrs[1].Key)
}

func TestTemplate_DuplicateKey(t *testing.T) {
	_, err := New("dup", []Declaration{
		{Key: "foo", Type: "string"},
		{Key: "foo", Type: "email"},
	})
	require.ErrorIs(t, err, ErrInvalidTemplate)
}

const customersYAML = `
name: customers
description: Customer import
attributes:
  - key: id
    type: uuid!
  - key: emails
    type: [email!, email]
  - key: tags
    type:
      composite: array
      scalars: [string, string]
`

func TestLoad(t *testing.T) {
	tpl, err := Load(strings.NewReader(customersYAML))
	require.NoError(t, err)
	require.Equal(t, "customers", tpl.Name())
	require.Equal(t, "Customer import", tpl.Description())

	attrs := tpl.Attributes()
	require.Len(t, attrs, 3)
	require.False(t, attrs[0].Composite())
	require.Equal(t, []Scalar{{Name: "email", Required: true}, {Name: "email"}}, attrs[1].Scalars())
	require.Equal(t, "array", attrs[2].Kind())

	spec, err := tpl.Apply(NewConfig(nil))
	require.NoError(t, err)
	require.Equal(t, 5, spec.Len())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "empty", doc: ""},
		{name: "not yaml", doc: "attributes: [unclosed"},
		{name: "no attributes", doc: "name: x\n"},
		{name: "empty attributes", doc: "attributes: []\n"},
		{name: "unknown field", doc: "attributes:\n  - key: a\n    type: string\n    extra: 1\n"},
		{name: "bad tag", doc: "attributes:\n  - key: a\n    type: 'string!!'\n"},
		{name: "numeric type", doc: "attributes:\n  - key: a\n    type: 3\n"},
		{name: "duplicate keys", doc: "attributes:\n  - key: a\n    type: string\n  - key: a\n    type: email\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.doc))
			require.ErrorIs(t, err, ErrInvalidTemplate)
		})
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	write("customers.yaml", customersYAML)
	write("orders.yml", "attributes:\n  - key: total\n    type: numeric!\n")
	write("README.md", "not a template")

	reg, err := LoadDir(dir)
	require.NoError(t, err)
	require.Equal(t, 2, reg.Len())

	orders, ok := reg.Get("orders")
	require.True(t, ok, "unnamed template takes its file name")
	require.Equal(t, "orders", orders.Name())

	var names []string
	for _, tpl := range reg.All() {
		names = append(names, tpl.Name())
	}
	require.Equal(t, []string{"customers", "orders"}, names)

	write("dup.yaml", customersYAML)
	_, err = LoadDir(dir)
	require.True(t, errors.Is(err, ErrDuplicateTemplate), "got %v", err)
}

func TestRegistry_RejectsUnnamed(t *testing.T) {
	tpl, err := New("", []Declaration{{Key: "a", Type: "string"}})
	require.NoError(t, err)
	require.ErrorIs(t, NewRegistry().Register(tpl), ErrInvalidTemplate)
}
