package query

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrMalformed is the cause of every AssertionError. Use errors.Is to test for it.
var ErrMalformed = errors.New("malformed query")

// AssertionError reports a query that violates the structure of the query language.
type AssertionError struct {
	// Path is the field path at which the violation was found, empty for the top level
	Path   string
	Reason string
}

func (e *AssertionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", ErrMalformed, e.Reason)
	}
	return fmt.Sprintf("%s at '%s': %s", ErrMalformed, e.Path, e.Reason)
}

// Unwrap returns ErrMalformed
func (e *AssertionError) Unwrap() error {
	return ErrMalformed
}

// assertionf returns an *AssertionError with the current stack attached.
func assertionf(path, format string, args ...interface{}) error {
	return errors.WithStack(&AssertionError{Path: path, Reason: fmt.Sprintf(format, args...)})
}

// assert panics with an *AssertionError if ok is false.
func assert(ok bool, path, format string, args ...interface{}) {
	if !ok {
		panic(assertionf(path, format, args...))
	}
}
