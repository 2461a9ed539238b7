package xframe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/syssam/xframe/compiler"
	"github.com/syssam/xframe/dialect/sql/sqlerr"
	"github.com/syssam/xframe/materialize"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a First query matches no row.
	ErrNotFound = errors.New("xframe: entity not found")

	// ErrNotSingular is returned when a Single query does not match
	// exactly one row.
	ErrNotSingular = errors.New("xframe: entity not singular")

	// ErrTxStarted is returned when SubmitChanges is called on a session
	// that is already submitting.
	ErrTxStarted = errors.New("xframe: cannot start a transaction within a transaction")
)

// Construction and materialization errors re-exported from the packages
// raising them, so callers only import xframe.
var (
	ErrNotSupported    = compiler.ErrNotSupported
	ErrMissingKey      = compiler.ErrMissingKey
	ErrOrderByRequired = compiler.ErrOrderByRequired
	ErrEmptyUpdate     = compiler.ErrEmptyUpdate
	ErrGroupKey        = compiler.ErrGroupKey
	ErrUnknownMember   = compiler.ErrUnknownMember
	ErrMaterialize     = materialize.ErrMaterialize
)

type (
	// UnsupportedError names a construct without SQL rendering.
	UnsupportedError = compiler.UnsupportedError
	// MissingKeyError is returned by writes that must match rows by key.
	MissingKeyError = compiler.MissingKeyError
	// GroupKeyError reports an invalid group key reference.
	GroupKeyError = compiler.GroupKeyError
	// MaterializeError reports a value that could not be assigned to a member.
	MaterializeError = materialize.MaterializeError
)

// NotFoundError represents an error when an entity is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("xframe: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the entity label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given entity type.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
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
	label string
	count int // Number of results returned (-1 if unknown)
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("xframe: %s not singular (got %d results, expected 1)", e.label, e.count)
	}
	return fmt.Sprintf("xframe: %s not singular", e.label)
}

// Is reports whether the target error matches NotSingularError.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Label returns the entity label.
func (e *NotSingularError) Label() string {
	return e.label
}

// Count returns the number of results, or -1 if unknown.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError for the given entity type.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the result count.
func NewNotSingularErrorWithCount(label string, count int) *NotSingularError {
	return &NotSingularError{label: label, count: count}
}

// IsNotSingular returns true if the error is a NotSingularError.
func IsNotSingular(err error) bool {
	if err == nil {
		return false
	}
	var e *NotSingularError
	return errors.As(err, &e) || errors.Is(err, ErrNotSingular)
}

// ConstraintError represents a database constraint violation error.
type ConstraintError struct {
	kind sqlerr.Kind
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("xframe: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// Kind returns the class of the violated constraint.
func (e ConstraintError) Kind() sqlerr.Kind {
	return e.kind
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{kind: sqlerr.Classify(wrap), msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// constraint wraps driver errors classified as constraint violations into
// a ConstraintError and returns other errors unchanged.
func constraint(err error) error {
	if err == nil || IsConstraintError(err) {
		return err
	}
	if k := sqlerr.Classify(err); k != sqlerr.None {
		return ConstraintError{kind: k, msg: k.String() + ": " + err.Error(), wrap: err}
	}
	return err
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("xframe: rollback failed: %v", e.Err)
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
		return "xframe: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("xframe: multiple errors:")
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

// QueryError wraps a query error with additional context.
type QueryError struct {
	Entity string // Element type being queried
	Op     string // Operation (e.g., "all", "count", "any")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *QueryError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("xframe: querying %s (%s): %v", e.Entity, e.Op, e.Err)
	}
	return fmt.Sprintf("xframe: querying %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// NewQueryError returns a new QueryError.
func NewQueryError(entity, op string, err error) *QueryError {
	return &QueryError{Entity: entity, Op: op, Err: err}
}

// IsQueryError returns true if the error is a QueryError.
func IsQueryError(err error) bool {
	if err == nil {
		return false
	}
	var e *QueryError
	return errors.As(err, &e)
}

// MutationError wraps a mutation error with additional context.
type MutationError struct {
	Entity string // Entity type being mutated
	Op     string // Operation ("insert", "update", "delete", "submit")
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *MutationError) Error() string {
	return fmt.Sprintf("xframe: %s %s: %v", e.Op, e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *MutationError) Unwrap() error {
	return e.Err
}

// NewMutationError returns a new MutationError.
func NewMutationError(entity, op string, err error) *MutationError {
	return &MutationError{Entity: entity, Op: op, Err: err}
}

// IsMutationError returns true if the error is a MutationError.
func IsMutationError(err error) bool {
	if err == nil {
		return false
	}
	var e *MutationError
	return errors.As(err, &e)
}

// IsNotSupported reports whether err is, or wraps, an unsupported construct.
func IsNotSupported(err error) bool {
	return compiler.IsNotSupported(err)
}

// IsMissingKey reports whether err is, or wraps, a missing key error.
func IsMissingKey(err error) bool {
	return compiler.IsMissingKey(err)
}

// IsMaterializeError reports whether err is, or wraps, a row rebuilding error.
func IsMaterializeError(err error) bool {
	return errors.Is(err, ErrMaterialize)
}
