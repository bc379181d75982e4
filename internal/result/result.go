// Package result provides the two-variant outcome container used across sheetcast.
//
// A Result is either a Success or a Failure, and each variant may or may not
// carry a payload. Sheet-level outcomes are always empty (Success() or Failure()),
// row-level outcomes carry the casted attributes on success.
package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrNoValue is returned when unwrapping a result that holds no payload.
	ErrNoValue = errors.New("there is no value within the result")

	// ErrVariant is returned when unwrapping the wrong variant.
	ErrVariant = errors.New("wrong result variant")
)

type variant uint8

const (
	success variant = iota
	failure
)

// Result is a Success or a Failure, optionally holding a value of type T.
// The zero value is an empty Success.
type Result[T any] struct {
	variant variant
	value   T
	filled  bool
}

// Success wraps v in a Success.
func Success[T any](v T) Result[T] {
	return Result[T]{variant: success, value: v, filled: true}
}

// Failure wraps v in a Failure.
func Failure[T any](v T) Result[T] {
	return Result[T]{variant: failure, value: v, filled: true}
}

// EmptySuccess returns a Success without payload.
func EmptySuccess[T any]() Result[T] {
	return Result[T]{variant: success}
}

// EmptyFailure returns a Failure without payload.
func EmptyFailure[T any]() Result[T] {
	return Result[T]{variant: failure}
}

func (r Result[T]) IsSuccess() bool { return r.variant == success }
func (r Result[T]) IsFailure() bool { return r.variant == failure }
func (r Result[T]) IsEmpty() bool   { return !r.filled }

// Success unwraps the payload of a Success.
func (r Result[T]) Success() (T, error) {
	return r.unwrap(success)
}

// Failure unwraps the payload of a Failure.
func (r Result[T]) Failure() (T, error) {
	return r.unwrap(failure)
}

// MustSuccess is like Success but panics on error.
func (r Result[T]) MustSuccess() T {
	v, err := r.Success()
	if err != nil {
		panic(err)
	}
	return v
}

// MustFailure is like Failure but panics on error.
func (r Result[T]) MustFailure() T {
	v, err := r.Failure()
	if err != nil {
		panic(err)
	}
	return v
}

func (r Result[T]) unwrap(want variant) (T, error) {
	var zero T
	if r.variant != want {
		return zero, fmt.Errorf("%w: not a %s", ErrVariant, want)
	}
	if !r.filled {
		return zero, ErrNoValue
	}
	return r.value, nil
}

// Equal reports whether both results are the same variant and hold deeply
// equal payloads, or are both empty.
func (r Result[T]) Equal(other Result[T]) bool {
	if r.variant != other.variant || r.filled != other.filled {
		return false
	}
	if !r.filled {
		return true
	}
	return reflect.DeepEqual(r.value, other.value)
}

// String renders the result as Success(value) or Failure(), for logs and test output.
func (r Result[T]) String() string {
	if !r.filled {
		return r.variant.String() + "()"
	}
	return fmt.Sprintf("%s(%#v)", r.variant, r.value)
}

// MarshalJSON renders {"success": bool, "value": payload}. The value key is
// omitted for empty results.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	wire := struct {
		Success bool `json:"success"`
		Value   any  `json:"value,omitempty"`
	}{Success: r.IsSuccess()}
	if r.filled {
		wire.Value = r.value
	}
	return json.Marshal(wire)
}

func (v variant) String() string {
	if v == failure {
		return "Failure"
	}
	return "Success"
}
