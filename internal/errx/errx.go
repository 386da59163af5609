// Package errx tags errors with the operation that failed and a Kind that
// handlers translate into a response. Unauthorized and Forbidden are
// HTTP-flavoured but live here so use cases can report them directly.
package errx

import (
	"errors"
	"fmt"
)

type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	Conflict
	Invalid
	Unauthorized
	Forbidden
	Unavailable
	Internal
)

var kindNames = [...]string{
	Unknown:      "Unknown",
	NotFound:     "NotFound",
	Conflict:     "Conflict",
	Invalid:      "Invalid",
	Unauthorized: "Unauthorized",
	Forbidden:    "Forbidden",
	Unavailable:  "Unavailable",
	Internal:     "Internal",
}

// String returns the string representation of the error kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Error is an error raised by Op. Kind classifies it for callers that do not
// care about the underlying cause.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// E wraps err with op and kind. It returns nil when err is nil so callers can
// wrap unconditionally.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap records op on err while keeping the kind err already carries.
func Wrap(op string, err error) error {
	return E(op, KindOf(err), err)
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op
	case e.Op == "":
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// OpOf returns the outermost operation recorded on err.
func OpOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Op
	}
	return ""
}
