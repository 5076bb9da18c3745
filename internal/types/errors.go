package types

import (
	"errors"
	"fmt"
)

// Kind classifies errors so callers can map them to exit codes and
// recovery policies without string matching.
type Kind string

const (
	KindUsage         Kind = "usage"          // Invalid CLI or filter values
	KindScanWarning   Kind = "scan_warning"   // Single-path issue during walk
	KindHash          Kind = "hash"           // Read failure during a hashing stage
	KindDelete        Kind = "delete"         // Trash move failed
	KindCancelled     Kind = "cancelled"      // Stop flag observed
	KindCorruptResult Kind = "corrupt_result" // JSON load failure or schema mismatch
)

// Error carries a machine-readable kind alongside a human-readable
// message and an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same kind, so sentinel comparisons
// like errors.Is(err, ErrCancelled) work across instances.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// Errorf builds a kinded error from a format string.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a kind to an underlying error.
func WrapError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// ErrCancelled is returned by long-running operations that observed the
// stop flag. Results returned alongside it are partial.
var ErrCancelled = &Error{Kind: KindCancelled, Message: "cancelled"}

// KindOf extracts the kind of an error, or "" for unkinded errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
