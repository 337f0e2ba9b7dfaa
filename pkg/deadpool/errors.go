package deadpool

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for each failure category.
// Callers distinguish them with errors.Is().
//
// Example usage:
//
//	result, err := scoring.ApplyScoreUpdate(ctx, update)
//	if errors.Is(err, deadpool.ErrNotFound) {
//	    // list item does not exist
//	}
var (
	// ErrConfiguration indicates required connection parameters are absent or invalid.
	// It is only produced at startup and is fatal.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrConnection indicates a network or infrastructure failure: refused,
	// reset, timed out, lost connection or unknown host.
	ErrConnection = errors.New("connection failed")

	// ErrNotFound indicates the referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates malformed caller input.
	ErrValidation = errors.New("validation failed")

	// ErrStatement indicates any other failure reported by the database.
	ErrStatement = errors.New("statement failed")

	// ErrQueueLimit indicates the pool wait queue is full.
	ErrQueueLimit = errors.New("connection queue limit reached")
)

// FailureCategory is the closed set of failure classes produced at the driver boundary.
type FailureCategory int

const (
	FailureNone       FailureCategory = iota // no error
	FailureStatement                         // database rejected the request; never retried
	FailureConnection                        // infrastructure failure; retried
	FailureNotFound                          // no rows where one was required
	FailureValidation                        // caller input rejected before any I/O
	FailureConfiguration                     // startup configuration problem
)

// String returns a human-readable name of the category.
func (c FailureCategory) String() string {
	switch c {
	case FailureNone:
		return "none"
	case FailureStatement:
		return "statement"
	case FailureConnection:
		return "connection"
	case FailureNotFound:
		return "not_found"
	case FailureValidation:
		return "validation"
	case FailureConfiguration:
		return "configuration"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Sentinel returns the sentinel error matching the category.
func (c FailureCategory) Sentinel() error {
	switch c {
	case FailureConnection:
		return ErrConnection
	case FailureNotFound:
		return ErrNotFound
	case FailureValidation:
		return ErrValidation
	case FailureConfiguration:
		return ErrConfiguration
	case FailureStatement:
		return ErrStatement
	default:
		return nil
	}
}

// Error is a classified failure of a data-access operation.
// errors.Is matches the sentinel of its Category; errors.As/Unwrap reach the driver error.
type Error struct {
	Category FailureCategory
	Op       string
	Err      error
}

// NewError classifies err under the given category for operation op.
func NewError(category FailureCategory, op string, err error) *Error {
	return &Error{Category: category, Op: op, Err: err}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Category, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Category, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel of this error's category.
func (e *Error) Is(target error) bool {
	s := e.Category.Sentinel()
	return s != nil && target == s
}

// CategoryOf returns the category of a classified error.
// Unclassified errors are reported as FailureStatement.
func CategoryOf(err error) FailureCategory {
	if err == nil {
		return FailureNone
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	switch {
	case errors.Is(err, ErrConfiguration):
		return FailureConfiguration
	case errors.Is(err, ErrValidation):
		return FailureValidation
	case errors.Is(err, ErrNotFound):
		return FailureNotFound
	case errors.Is(err, ErrConnection):
		return FailureConnection
	}
	return FailureStatement
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrConfiguration):
		return ExitConfigError
	case errors.Is(err, ErrConnection):
		return ExitConnectionError
	case errors.Is(err, ErrNotFound):
		return ExitNotFound
	case errors.Is(err, ErrValidation):
		return ExitValidationError
	case errors.Is(err, ErrStatement), errors.Is(err, ErrQueueLimit):
		return ExitStatementError
	}

	errStr := err.Error()
	if strings.Contains(errStr, "unknown flag") ||
		strings.Contains(errStr, "unknown shorthand flag") ||
		strings.Contains(errStr, "accepts ") ||
		strings.Contains(errStr, "required flag") ||
		strings.Contains(errStr, "flags in the group") ||
		strings.Contains(errStr, "invalid argument") {
		return ExitUsageError
	}

	return ExitGeneralError
}

// StatusForError maps an error to the HTTP status a request handler should answer with.
func StatusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrConnection), errors.Is(err, ErrQueueLimit):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
