package template

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetcast/internal/types"
)

// Config supplies what a template needs to become a Specification: the type
// registry and the header naming scheme.
type Config interface {
	Types() *types.Container

	// Header returns the expected header label of a column and the pattern
	// physical header cells are matched with. index is NoIndex for scalar
	// attributes.
	Header(key string, index int) (label string, pattern *regexp.Regexp)
}

// DefaultConfig labels columns with the capitalized key, followed by the
// 1-based slot number for composites ("Foo", "Bar 5"), and matches headers
// case-insensitively, ignoring surrounding whitespace.
type DefaultConfig struct {
	types *types.Container
}

// NewConfig returns a DefaultConfig over c. A nil c uses the built-in types.
func NewConfig(c *types.Container) *DefaultConfig {
	if c == nil {
		c = types.NewContainer()
	}
	return &DefaultConfig{types: c}
}

func (c *DefaultConfig) Types() *types.Container { return c.types }

func (c *DefaultConfig) Header(key string, index int) (string, *regexp.Regexp) {
	label := Capitalize(key)
	if index != NoIndex {
		label += " " + strconv.Itoa(index+1)
	}
	return label, regexp.MustCompile(`(?i)^\s*` + regexp.QuoteMeta(label) + `\s*$`)
}

// Capitalize upper-cases the first letter of s and lower-cases the rest.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
