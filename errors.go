package pyout

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
var (
	// ErrInvalidStyle reports a style declaration that violates the schema.
	// StyleError values wrap it with the offending column and option.
	ErrInvalidStyle = errors.New("invalid style")
	// ErrTableTooNarrow reports that the fixed widths plus one cell per
	// auto-width column exceed the total table width.
	ErrTableTooNarrow = errors.New("columns do not fit table width")
	// ErrRowIdentity reports an identity column value that cannot be used
	// as a lookup key.
	ErrRowIdentity = errors.New("id column values must be comparable")
	// ErrNoColumns reports a record whose columns cannot be inferred and
	// were not declared up front.
	ErrNoColumns = errors.New("columns not declared and not inferable from record")
	// ErrInvalidMode reports an unrecognized write mode.
	ErrInvalidMode = errors.New("invalid mode")
	// ErrAborted reports a write after output has been aborted.
	ErrAborted = errors.New("output aborted")
)

// StyleError is a structured schema violation: which column and option
// broke which constraint. It unwraps to ErrInvalidStyle.
type StyleError struct {
	Column string // empty for table-level options
	Option string
	Reason string
}

func (e *StyleError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("invalid style: option %q: %s", e.Option, e.Reason)
	}
	return fmt.Sprintf("invalid style: column %q, option %q: %s",
		e.Column, e.Option, e.Reason)
}

func (e *StyleError) Unwrap() error { return ErrInvalidStyle }

// StyleFunctionError reports a transform or aggregate that returned an
// error or panicked. Fn identifies the failing function.
type StyleFunctionError struct {
	Fn  string
	Err error
}

func (e *StyleFunctionError) Error() string {
	return fmt.Sprintf("style function %s failed: %v", e.Fn, e.Err)
}

func (e *StyleFunctionError) Unwrap() error { return e.Err }

// ProducerError reports a deferred producer that failed. ID names the row
// the producer was feeding.
type ProducerError struct {
	ID      string
	Columns []string
	Err     error
}

func (e *ProducerError) Error() string {
	return fmt.Sprintf("producing value for row %s (columns %v) failed: %v",
		e.ID, e.Columns, e.Err)
}

func (e *ProducerError) Unwrap() error { return e.Err }

// panicError normalizes a recovered panic value.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", r)
}
