package types

import (
	"errors"
	"fmt"

	"github.com/JonMunkholm/sheetcast/internal/messaging"
)

// Cast is one step of a scalar casting pipeline. It receives the output of the
// previous step and returns the next value. Returning a *HaltError stops the
// pipeline and records the halt's code as an ERROR message on the cell; any
// other error aborts sheet processing. Steps may add warnings through m.
type Cast func(value any, m *messaging.Messenger) (any, error)

// HaltError rejects a cell value with a message code.
type HaltError struct {
	Code string
	Data any
}

func (e *HaltError) Error() string {
	return fmt.Sprintf("cast halted: %s", e.Code)
}

// Halt returns a *HaltError for code and its code_data.
func Halt(code string, data any) error {
	return &HaltError{Code: code, Data: data}
}

// Scalar is an immutable casting pipeline for a single cell.
type Scalar struct {
	casts []Cast
}

// NewScalar returns a scalar running casts in order.
func NewScalar(casts ...Cast) Scalar {
	return Scalar{casts: append([]Cast(nil), casts...)}
}

// Cast returns a new Scalar running s's pipeline followed by casts.
//
//	reverse := types.String().Cast(func(v any, _ *messaging.Messenger) (any, error) {
//	    return reverseString(v.(string)), nil
//	})
func (s Scalar) Cast(casts ...Cast) Scalar {
	pipeline := make([]Cast, 0, len(s.casts)+len(casts))
	pipeline = append(pipeline, s.casts...)
	pipeline = append(pipeline, casts...)
	return Scalar{casts: pipeline}
}

// Apply casts a raw cell value.
//
// Blank values (nil or whitespace-only strings) never reach the pipeline: an
// optional cell casts to nil without a message, a required one fails with
// must_exist. The bool result is false when the cell was rejected, in which
// case exactly one ERROR message has been recorded on m.
func (s Scalar) Apply(value any, required bool, m *messaging.Messenger) (any, bool, error) {
	if isBlank(value) {
		if required {
			m.Error(messaging.CodeMustExist, nil)
			return nil, false, nil
		}
		return nil, true, nil
	}

	var err error
	for _, cast := range s.casts {
		value, err = cast(value, m)
		if err == nil {
			continue
		}

		var halt *HaltError
		if errors.As(err, &halt) {
			m.Error(halt.Code, halt.Data)
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}
