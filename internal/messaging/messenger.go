package messaging

// Messenger collects messages under a current scope. Scoped copies returned
// by Col and Cell share the same sink, so a caller can hand a cell-scoped
// messenger to a caster and read every message back from the parent.
//
// A Messenger is not safe for concurrent use.
type Messenger struct {
	scope     Scope
	scopeData *ScopeData
	sink      *[]Message
}

// NewMessenger returns a sheet-scoped messenger with an empty sink.
func NewMessenger() *Messenger {
	return &Messenger{scope: ScopeSheet, sink: new([]Message)}
}

// Sheet returns a messenger scoped to the whole sheet.
func (m *Messenger) Sheet() *Messenger {
	return &Messenger{scope: ScopeSheet, sink: m.sink}
}

// Col returns a messenger scoped to the column with the given letter.
func (m *Messenger) Col(col string) *Messenger {
	return &Messenger{scope: ScopeCol, scopeData: &ScopeData{Col: col}, sink: m.sink}
}

// Cell returns a messenger scoped to one cell. Rows are 1-based.
func (m *Messenger) Cell(row int, col string) *Messenger {
	return &Messenger{scope: ScopeCell, scopeData: &ScopeData{Row: row, Col: col}, sink: m.sink}
}

// Error records an ERROR message in the current scope.
func (m *Messenger) Error(code string, data any) {
	m.add(code, data, SeverityError)
}

// Warn records a WARNING message in the current scope.
func (m *Messenger) Warn(code string, data any) {
	m.add(code, data, SeverityWarning)
}

// add panics when the message violates its contract: that is a bug in the
// caster or matcher, never a data problem.
func (m *Messenger) add(code string, data any, severity Severity) {
	var sd *ScopeData
	if m.scopeData != nil {
		copied := *m.scopeData
		sd = &copied
	}
	msg, err := New(code, data, m.scope, sd, severity)
	if err != nil {
		panic(err)
	}
	*m.sink = append(*m.sink, msg)
}

// Messages returns the collected messages in emission order.
func (m *Messenger) Messages() []Message {
	return *m.sink
}

// HasErrors reports whether an ERROR message has been collected.
func (m *Messenger) HasErrors() bool {
	return HasErrors(*m.sink)
}

// Len returns the number of collected messages.
func (m *Messenger) Len() int {
	return len(*m.sink)
}
