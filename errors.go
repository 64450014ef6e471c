package jetdb

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category is one of the error kinds surfaced at the package boundary.
type Category int

const (
	// IO marks an underlying storage read/write failure. Not recoverable
	// by the engine.
	IO Category = iota
	// CorruptFormat marks an on-disk structure that violates the page
	// layout the engine expects.
	CorruptFormat
	// Unsupported marks a file-format version or column type this build
	// does not implement.
	Unsupported
	// ConstraintViolation marks a uniqueness, required, FK, or validator
	// failure.
	ConstraintViolation
	// InvalidArgument marks a bad row shape, unknown name, or cursor
	// misuse.
	InvalidArgument
	// IllegalState marks an operation against a closed database or a
	// cursor positioned past its valid range for the requested mutation.
	IllegalState
)

func (c Category) String() string {
	switch c {
	case IO:
		return "IO"
	case CorruptFormat:
		return "CorruptFormat"
	case Unsupported:
		return "Unsupported"
	case ConstraintViolation:
		return "ConstraintViolation"
	case InvalidArgument:
		return "InvalidArgument"
	case IllegalState:
		return "IllegalState"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with the taxonomy category it belongs
// to. Use errors.As to recover it and switch on its Kind field, or call
// AsCategory.
type Error struct {
	Kind Category
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.msg, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.msg)
}

func (e *Error) Unwrap() error { return e.err }

// AsCategory reports the taxonomy kind of err, or false if err does not
// carry one.
func AsCategory(err error) (Category, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Wrap builds a categorized error, attaching a stack trace to the first
// wrap of a plain error.
func Wrap(kind Category, cause error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, msg: msg, err: cause}
}

// New builds a categorized error with no wrapped cause.
func New(kind Category, format string, args ...interface{}) error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// BatchError is raised from multi-row inserts. Count is the number of
// rows committed on the target page before Cause aborted the batch.
type BatchError struct {
	Count int
	Cause error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch insert committed %d rows before error: %v", e.Count, e.Cause)
}

func (e *BatchError) Unwrap() error { return e.Cause }

// ErrPageOutOfRange reports a page number outside [0, fileLength/pageSize).
var ErrPageOutOfRange = New(IO, "page number out of range")

// ErrDuplicateAdd reports Usage map Add called on a page number already
// present, without the force flag.
var ErrDuplicateAdd = New(InvalidArgument, "page already present in usage map")
