package specification

// match.go matches the header row of a sheet against the declared columns.
//
// Matching never stops early: every physical header is examined so that a
// single pass reports all structural problems at once.
//  1. Each physical header cell is tested against the columns in declaration
//     order; the first column whose pattern matches wins.
//  2. A header matching no column yields invalid_header (COL scope).
//  3. A header matching a column already claimed by an earlier header yields
//     duplicated_header (COL scope).
//  4. Every required column left unmatched yields missing_column (SHEET scope),
//     in declaration order.

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/sheetcast/internal/messaging"
)

// Match is the outcome of matching a header row: which physical column
// feeds which declared Column.
type Match struct {
	spec    *Specification
	columns map[int]Column
}

// Column returns the Column matched by the physical column at index.
func (m *Match) Column(index int) (Column, bool) {
	col, ok := m.columns[index]
	return col, ok
}

// Indexes returns the matched physical column indexes in ascending order.
func (m *Match) Indexes() []int {
	idx := make([]int, 0, len(m.columns))
	for i := range m.columns {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	return idx
}

// Len returns the number of matched physical columns.
func (m *Match) Len() int {
	return len(m.columns)
}

// Specification returns the specification the match was computed against.
func (m *Match) Specification() *Specification {
	return m.spec
}

// Match matches a header row. The returned messages are sheet-level: when
// non-empty the sheet must be rejected.
func (s *Specification) Match(header []any) (*Match, []messaging.Message) {
	m := messaging.NewMessenger()
	match := &Match{spec: s, columns: make(map[int]Column, len(header))}
	claimed := make([]bool, len(s.columns))

	for i, cell := range header {
		text, blank := headerText(cell)
		col := messaging.ColumnLetter(i)

		if blank {
			m.Col(col).Error(messaging.CodeInvalidHeader, nil)
			continue
		}

		found := -1
		for j := range s.columns {
			if s.columns[j].Matches(text) {
				found = j
				break
			}
		}

		switch {
		case found < 0:
			m.Col(col).Error(messaging.CodeInvalidHeader, text)
		case claimed[found]:
			m.Col(col).Error(messaging.CodeDuplicatedHeader, text)
		default:
			claimed[found] = true
			match.columns[i] = s.columns[found]
		}
	}

	sheet := m.Sheet()
	for j, c := range s.columns {
		if c.Required && !claimed[j] {
			sheet.Error(messaging.CodeMissingColumn, c.Header)
		}
	}

	return match, m.Messages()
}

// headerText renders a header cell as text. Non-string cells (numbers from
// typed backends) are formatted with %v.
func headerText(cell any) (string, bool) {
	var text string
	switch v := cell.(type) {
	case nil:
		return "", true
	case string:
		text = v
	default:
		text = fmt.Sprintf("%v", v)
	}
	text = strings.TrimSpace(text)
	return text, text == ""
}
