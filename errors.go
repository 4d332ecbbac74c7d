package cayenne

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested object does not exist.
	ErrNotFound = errors.New("cayenne: object not found")

	// ErrNotSingular is returned when a query that expects exactly one result
	// returns zero or multiple results.
	ErrNotSingular = errors.New("cayenne: object not singular")

	// ErrCommitFailed is matched by every CommitError.
	ErrCommitFailed = errors.New("cayenne: commit failed")

	// ErrOptimisticLock is returned when an UPDATE or DELETE matched no rows.
	ErrOptimisticLock = errors.New("cayenne: optimistic lock failure")

	// ErrInvalidState is returned when an operation is not allowed for the
	// persistence state of an object.
	ErrInvalidState = errors.New("cayenne: invalid persistence state")
)

// NotFoundError represents an error when an object is not found.
type NotFoundError struct {
	entity string
	id     any
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	if e.id != nil {
		return fmt.Sprintf("cayenne: %s not found (id=%v)", e.entity, e.id)
	}
	return fmt.Sprintf("cayenne: %s not found", e.entity)
}

// Is reports whether the target error matches NotFoundError.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Entity returns the entity name.
func (e *NotFoundError) Entity() string {
	return e.entity
}

// ID returns the identifier that was searched for, if available.
func (e *NotFoundError) ID() any {
	return e.id
}

// NewNotFoundError returns a new NotFoundError for the given entity.
func NewNotFoundError(entity string, id any) *NotFoundError {
	return &NotFoundError{entity: entity, id: id}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// NotSingularError represents an error when a query expects a singular result
// but receives zero or multiple results.
type NotSingularError struct {
	entity string
	count  int
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	return fmt.Sprintf("cayenne: %s not singular (got %d results, expected 1)", e.entity, e.count)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Count returns the number of results.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError.
func NewNotSingularError(entity string, count int) *NotSingularError {
	return &NotSingularError{entity: entity, count: count}
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("cayenne: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// Failure describes one rejected object change.
type Failure struct {
	Entity    string
	ID        any
	Attribute string
	Message   string
}

// String returns the failure description.
func (f Failure) String() string {
	var b strings.Builder
	b.WriteString(f.Entity)
	if f.Attribute != "" {
		b.WriteByte('.')
		b.WriteString(f.Attribute)
	}
	if f.ID != nil {
		fmt.Fprintf(&b, " (id=%v)", f.ID)
	}
	b.WriteString(": ")
	b.WriteString(f.Message)
	return b.String()
}

// ValidationError is returned when commit rules reject one or more changes.
type ValidationError struct {
	Failures []Failure
	Err      error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	switch len(e.Failures) {
	case 0:
		if e.Err != nil {
			return fmt.Sprintf("cayenne: validation failed: %v", e.Err)
		}
		return "cayenne: validation failed"
	case 1:
		return "cayenne: validation failed: " + e.Failures[0].String()
	}
	var sb strings.Builder
	sb.WriteString("cayenne: validation failed:")
	for i, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  [%d] %s", i+1, f)
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// CommitError wraps an error that aborted a commit. The transaction was
// rolled back and the object context kept its uncommitted changes.
type CommitError struct {
	Entity string // Entity of the failed row operation, if known
	Op     string // "insert", "update" or "delete"
	Err    error
}

// Error returns the error string.
func (e *CommitError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("cayenne: commit: %s %s: %v", e.Op, e.Entity, e.Err)
	}
	return fmt.Sprintf("cayenne: commit: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CommitError) Unwrap() error {
	return e.Err
}

// Is reports whether the target matches ErrCommitFailed.
func (e *CommitError) Is(err error) bool {
	return err == ErrCommitFailed
}

// TranslationError is returned when an expression cannot be lowered to SQL.
type TranslationError struct {
	Dialect string
	Expr    string
	Err     error
}

// Error returns the error string.
func (e *TranslationError) Error() string {
	return fmt.Sprintf("cayenne: translating %q for %s: %v", e.Expr, e.Dialect, e.Err)
}

// Unwrap returns the underlying error.
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("cayenne: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "cayenne: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("cayenne: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
