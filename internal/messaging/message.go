// Package messaging defines the structured diagnostics emitted while matching
// headers and casting cells.
//
// Every Message carries a stable code, a code-specific payload, a scope
// (sheet, column or cell) with its coordinates, and a severity. Only
// ERROR-severity messages turn a result into a failure; warnings are surfaced
// but never reject anything.
//
// The wire shape is a stable downstream contract:
//
//	{"code": "must_be_email", "code_data": {"value": "\"boudiou !\""},
//	 "scope": "CELL", "scope_data": {"row": 3, "col": "B"}, "severity": "ERROR"}
package messaging

import (
	"fmt"
	"strconv"
)

// Scope is the granularity a Message applies to.
type Scope string

const (
	ScopeSheet Scope = "SHEET"
	ScopeCol   Scope = "COL"
	ScopeCell  Scope = "CELL"
)

// Severity tells whether a Message rejects the result it is attached to.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// ScopeData locates a Message. It is nil for sheet-scoped messages, holds
// only Col for column-scoped ones and both fields for cell-scoped ones.
type ScopeData struct {
	Row int    `json:"row,omitempty"`
	Col string `json:"col"`
}

// Message is one diagnostic record.
type Message struct {
	Code      string     `json:"code"`
	CodeData  any        `json:"code_data"`
	Scope     Scope      `json:"scope"`
	ScopeData *ScopeData `json:"scope_data"`
	Severity  Severity   `json:"severity"`
}

// ValueData is the code_data payload of cell messages that report the
// offending raw value.
type ValueData struct {
	Value string `json:"value"`
}

// ValueOf renders a raw cell value for a ValueData payload. Strings are
// quoted so that blank and whitespace-only values stay visible.
func ValueOf(v any) ValueData {
	switch s := v.(type) {
	case string:
		return ValueData{Value: strconv.Quote(s)}
	case nil:
		return ValueData{Value: "nil"}
	default:
		return ValueData{Value: fmt.Sprintf("%v", s)}
	}
}

// New builds a Message and checks it against the scope rules and the
// contract registered for its code.
func New(code string, codeData any, scope Scope, scopeData *ScopeData, severity Severity) (Message, error) {
	msg := Message{
		Code:      code,
		CodeData:  codeData,
		Scope:     scope,
		ScopeData: scopeData,
		Severity:  severity,
	}
	if err := msg.validate(); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// IsError reports whether the message has ERROR severity.
func (m Message) IsError() bool {
	return m.Severity == SeverityError
}

// String renders the message for logs, e.g. "[ERROR] CELL B3 must_be_email".
func (m Message) String() string {
	loc := string(m.Scope)
	if m.ScopeData != nil {
		if m.ScopeData.Row > 0 {
			loc += " " + m.ScopeData.Col + strconv.Itoa(m.ScopeData.Row)
		} else {
			loc += " " + m.ScopeData.Col
		}
	}
	return fmt.Sprintf("[%s] %s %s", m.Severity, loc, m.Code)
}

func (m Message) validate() error {
	if m.Code == "" {
		return fmt.Errorf("message: empty code")
	}
	switch m.Severity {
	case SeverityError, SeverityWarning:
	default:
		return fmt.Errorf("message %s: invalid severity %q", m.Code, m.Severity)
	}

	switch m.Scope {
	case ScopeSheet:
		if m.ScopeData != nil {
			return fmt.Errorf("message %s: sheet scope takes no scope data", m.Code)
		}
	case ScopeCol:
		if m.ScopeData == nil || m.ScopeData.Col == "" || m.ScopeData.Row != 0 {
			return fmt.Errorf("message %s: col scope requires a column and no row", m.Code)
		}
	case ScopeCell:
		if m.ScopeData == nil || m.ScopeData.Col == "" || m.ScopeData.Row < 1 {
			return fmt.Errorf("message %s: cell scope requires a row and a column", m.Code)
		}
	default:
		return fmt.Errorf("message %s: invalid scope %q", m.Code, m.Scope)
	}

	c, ok := lookup(m.Code)
	if !ok {
		return nil
	}
	if !c.allows(m.Scope) {
		return fmt.Errorf("message %s: scope %s not allowed", m.Code, m.Scope)
	}
	if c.CodeData != nil && !c.CodeData(m.CodeData) {
		return fmt.Errorf("message %s: invalid code data %#v", m.Code, m.CodeData)
	}
	return nil
}

// HasErrors reports whether any of msgs has ERROR severity.
func HasErrors(msgs []Message) bool {
	for _, m := range msgs {
		if m.IsError() {
			return true
		}
	}
	return false
}

// ColumnLetter converts a 0-based column index to its spreadsheet letter:
// 0 is "A", 25 is "Z", 26 is "AA".
func ColumnLetter(index int) string {
	if index < 0 {
		return ""
	}
	var buf [8]byte
	i := len(buf)
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		i--
		buf[i] = byte('A' + (n-1)%26)
	}
	return string(buf[i:])
}
