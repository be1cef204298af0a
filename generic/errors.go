/*
errors.go - Centralized error types for the workflow engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these directly or wrap them with context.

ERROR CATEGORIES:
  1. AuthorizationError     - caller's role may not perform the operation
  2. InvalidTransitionError - action is not legal from the current status
  3. ValidationError        - missing reason, malformed amount, duplicate
  4. NotFoundError          - unknown run / employee / benefit / refund
  5. ConcurrencyError       - the record changed underneath the caller

  Every structured error unwraps to a sentinel so callers can branch with
  errors.Is without caring about the concrete type:

    if errors.Is(err, generic.ErrInvalidTransition) { ... }

  None of these are fatal. Every error is a rejected operation that left
  state untouched.

SEE ALSO:
  - payroll/errors.go: ExceptionBlockedError (needs the issue type)
  - api/handlers.go: Error → HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrUnauthorized is returned when the caller's role lacks the capability.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidTransition is returned when an action is not legal from the
	// current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrValidation is returned for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrExceptionBlocked is returned when outstanding critical exceptions
	// prevent an action.
	ErrExceptionBlocked = errors.New("blocked by critical exceptions")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidPeriod is returned when a pay period cannot be parsed.
	ErrInvalidPeriod = errors.New("invalid pay period")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AuthorizationError reports a role that may not perform an operation.
type AuthorizationError struct {
	Operation string
	Role      Role
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("role %q is not allowed to %s", e.Role, e.Operation)
}

func (e *AuthorizationError) Unwrap() error { return ErrUnauthorized }

// InvalidTransitionError reports an action attempted from a status that does
// not allow it.
type InvalidTransitionError struct {
	Subject string
	Current string
	Action  string
}

func (e *InvalidTransitionError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("cannot %s %s: current status is %s", e.Action, e.Subject, e.Current)
	}
	return fmt.Sprintf("cannot %s: current status is %s", e.Action, e.Current)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError reports a business-rule or input violation.
type ValidationError struct {
	Field   string // e.g. "reason", "net_pay"
	Code    string // e.g. "required", "already_applied"
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Required builds the ValidationError for a missing field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Code: "required", Message: "is required"}
}

// NotFoundError reports an unknown id.
type NotFoundError struct {
	Kind string // "run", "pay_line", "benefit", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConcurrencyError reports that the record's version moved between read and
// write. The caller must re-fetch and retry.
type ConcurrencyError struct {
	Kind            string
	ID              string
	ExpectedVersion int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("%s %q was modified concurrently (expected version %d); refetch and retry",
		e.Kind, e.ID, e.ExpectedVersion)
}

func (e *ConcurrencyError) Unwrap() error { return ErrConcurrentModification }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed after a refetch.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to the caller's input or state.
func IsClientError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrExceptionBlocked) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
