package types

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/sheetcast/internal/messaging"
)

// validate is safe for concurrent use and caches its parsed tags.
var validate = validator.New()

// Any passes any non-blank value through unchanged.
func Any() Scalar {
	return NewScalar()
}

// String requires a string and trims it. Trimming a value emits a
// cleaned_string warning.
func String() Scalar {
	return NewScalar(castString)
}

// Email requires a string holding a valid email address.
func Email() Scalar {
	return String().Cast(castVar("email", messaging.CodeMustBeEmail))
}

// URL requires a string holding an absolute URL.
func URL() Scalar {
	return String().Cast(castVar("url", messaging.CodeMustBeURL))
}

// Boolsy accepts booleans and their usual spellings (yes/no, y/n, 1/0, ...).
func Boolsy() Scalar {
	return NewScalar(castBoolsy)
}

// Date accepts time.Time values and dates in the common spreadsheet layouts,
// producing a pgtype.Date.
func Date() Scalar {
	return NewScalar(castDate)
}

// Numeric accepts Go numbers and number-like strings, producing a pgtype.Numeric.
func Numeric() Scalar {
	return NewScalar(castNumeric)
}

// UUID accepts uuid.UUID values and UUID strings, producing a uuid.UUID.
func UUID() Scalar {
	return NewScalar(castUUID)
}

func castString(v any, m *messaging.Messenger) (any, error) {
	s, ok := v.(string)
	if !ok {
		return nil, Halt(messaging.CodeMustBeString, messaging.ValueOf(v))
	}
	trimmed := strings.TrimSpace(s)
	if trimmed != s {
		m.Warn(messaging.CodeCleanedString, nil)
	}
	return trimmed, nil
}

func castVar(tag, code string) Cast {
	return func(v any, _ *messaging.Messenger) (any, error) {
		if err := validate.Var(v, tag); err != nil {
			return nil, Halt(code, messaging.ValueOf(v))
		}
		return v, nil
	}
}

func castBoolsy(v any, _ *messaging.Messenger) (any, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		if parsed, ok := parseBoolsy(CleanCell(b)); ok {
			return parsed, nil
		}
	}
	return nil, Halt(messaging.CodeMustBeBoolsy, messaging.ValueOf(v))
}

func castDate(v any, _ *messaging.Messenger) (any, error) {
	switch d := v.(type) {
	case time.Time:
		return pgtype.Date{Time: d, Valid: true}, nil
	case pgtype.Date:
		if d.Valid {
			return d, nil
		}
	case string:
		if parsed, ok := parseDate(CleanCell(d)); ok {
			return parsed, nil
		}
	}
	return nil, Halt(messaging.CodeMustBeDate, messaging.ValueOf(v))
}

func castNumeric(v any, _ *messaging.Messenger) (any, error) {
	var text string
	switch n := v.(type) {
	case string:
		text = CleanCell(n)
	case int:
		text = strconv.Itoa(n)
	case int64:
		text = strconv.FormatInt(n, 10)
	case float64:
		text = strconv.FormatFloat(n, 'f', -1, 64)
	case pgtype.Numeric:
		if n.Valid {
			return n, nil
		}
	}
	if parsed, ok := parseNumeric(text); ok {
		return parsed, nil
	}
	return nil, Halt(messaging.CodeMustBeNumber, messaging.ValueOf(v))
}

func castUUID(v any, _ *messaging.Messenger) (any, error) {
	switch u := v.(type) {
	case uuid.UUID:
		return u, nil
	case string:
		if parsed, err := uuid.Parse(CleanCell(u)); err == nil {
			return parsed, nil
		}
	}
	return nil, Halt(messaging.CodeMustBeUUID, messaging.ValueOf(v))
}
