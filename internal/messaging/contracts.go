package messaging

import (
	"fmt"
	"sort"
	"sync"
)

// Built-in message codes.
const (
	CodeInvalidHeader    = "invalid_header"
	CodeDuplicatedHeader = "duplicated_header"
	CodeMissingColumn    = "missing_column"
	CodeEmptySheet       = "empty_sheet"
	CodeMustExist        = "must_exist"
	CodeMustBeString     = "must_be_string"
	CodeMustBeEmail      = "must_be_email"
	CodeMustBeURL        = "must_be_url"
	CodeMustBeBoolsy     = "must_be_boolsy"
	CodeMustBeDate       = "must_be_date"
	CodeMustBeNumber     = "must_be_number"
	CodeMustBeUUID       = "must_be_uuid"
	CodeCleanedString    = "cleaned_string"
)

// Contract declares which scopes a code may carry and the shape of its
// code_data. It is checked when a Message is built.
type Contract struct {
	Scopes   []Scope
	CodeData func(any) bool
}

func (c Contract) allows(s Scope) bool {
	for _, allowed := range c.Scopes {
		if allowed == s {
			return true
		}
	}
	return false
}

// Code-data predicates.

func IsNil(v any) bool { return v == nil }

func IsString(v any) bool {
	_, ok := v.(string)
	return ok
}

func IsStringOrNil(v any) bool { return v == nil || IsString(v) }

func IsValueData(v any) bool {
	_, ok := v.(ValueData)
	return ok
}

var (
	contracts   = builtinContracts()
	contractsMu sync.RWMutex
)

func builtinContracts() map[string]Contract {
	col := []Scope{ScopeCol}
	sheet := []Scope{ScopeSheet}
	cell := []Scope{ScopeCell}

	return map[string]Contract{
		CodeInvalidHeader:    {Scopes: col, CodeData: IsStringOrNil},
		CodeDuplicatedHeader: {Scopes: col, CodeData: IsString},
		CodeMissingColumn:    {Scopes: sheet, CodeData: IsString},
		CodeEmptySheet:       {Scopes: sheet, CodeData: IsNil},
		CodeMustExist:        {Scopes: cell, CodeData: IsNil},
		CodeMustBeString:     {Scopes: cell, CodeData: IsValueData},
		CodeMustBeEmail:      {Scopes: cell, CodeData: IsValueData},
		CodeMustBeURL:        {Scopes: cell, CodeData: IsValueData},
		CodeMustBeBoolsy:     {Scopes: cell, CodeData: IsValueData},
		CodeMustBeDate:       {Scopes: cell, CodeData: IsValueData},
		CodeMustBeNumber:     {Scopes: cell, CodeData: IsValueData},
		CodeMustBeUUID:       {Scopes: cell, CodeData: IsValueData},
		CodeCleanedString:    {Scopes: cell, CodeData: IsNil},
	}
}

// Register adds the contract for a custom code. Custom scalars call it from
// an init function. Panics if the code is already registered or the
// contract is malformed.
func Register(code string, c Contract) {
	if err := checkContract(code, c); err != nil {
		panic(err)
	}

	contractsMu.Lock()
	defer contractsMu.Unlock()

	if _, exists := contracts[code]; exists {
		panic(fmt.Sprintf("message contract already registered: %s", code))
	}
	contracts[code] = c
}

func lookup(code string) (Contract, bool) {
	contractsMu.RLock()
	defer contractsMu.RUnlock()
	c, ok := contracts[code]
	return c, ok
}

// Codes returns all registered codes, sorted.
func Codes() []string {
	contractsMu.RLock()
	defer contractsMu.RUnlock()

	codes := make([]string, 0, len(contracts))
	for code := range contracts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ValidateContracts checks every registered contract once.
func ValidateContracts() error {
	contractsMu.RLock()
	defer contractsMu.RUnlock()

	for code, c := range contracts {
		if err := checkContract(code, c); err != nil {
			return err
		}
	}
	return nil
}

func checkContract(code string, c Contract) error {
	if code == "" {
		return fmt.Errorf("message contract: empty code")
	}
	if len(c.Scopes) == 0 {
		return fmt.Errorf("message contract %s: no scope allowed", code)
	}
	for _, s := range c.Scopes {
		switch s {
		case ScopeSheet, ScopeCol, ScopeCell:
		default:
			return fmt.Errorf("message contract %s: unknown scope %q", code, s)
		}
	}
	if c.CodeData == nil {
		return fmt.Errorf("message contract %s: missing code data predicate", code)
	}
	return nil
}
