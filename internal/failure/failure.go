// Package failure tags pipeline errors with a kind so callers at every layer
// can tell decode problems from inference problems without string matching.
package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind int

const (
	Internal Kind = iota
	Upload
	Decode
	FormatValidation
	Inference
)

func (k Kind) String() string {
	switch k {
	case Upload:
		return "upload"
	case Decode:
		return "decode"
	case FormatValidation:
		return "format_validation"
	case Inference:
		return "inference"
	default:
		return "internal"
	}
}

// Error is a tagged failure. Op names the step that failed ("transcode",
// "unit 2", ...) and Err is the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind. A nil err yields nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a tagged error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost tagged error in err's chain,
// or Internal if there is none.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Cause returns the innermost message, without kind and op prefixes.
func Cause(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Err.Error()
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
