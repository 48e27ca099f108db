package relsource

import (
	"errors"
	"fmt"

	"github.com/syssam/relsource/filter"
	"github.com/syssam/relsource/schema"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when an exactly-one retrieval matches no rows.
	ErrNotFound = errors.New("relsource: none retrieved")

	// ErrNotSingular is returned when an exactly-one retrieval matches more
	// than one row.
	ErrNotSingular = errors.New("relsource: more than one retrieved")
)

// DefinitionError reports a malformed model descriptor or extract/inject
// path at definition-compile time. It is raised before any statement
// reaches the store.
type DefinitionError = schema.DefinitionError

// NewDefinitionError returns a new DefinitionError for the given model.
func NewDefinitionError(model string, err error) *DefinitionError {
	return &DefinitionError{Model: model, Err: err}
}

// IsDefinitionError returns true if the error is a DefinitionError.
func IsDefinitionError(err error) bool {
	if err == nil {
		return false
	}
	var e *DefinitionError
	return errors.As(err, &e)
}

// FilterError reports a filter path that does not resolve against the
// model's descriptor set. It is raised before any statement executes.
type FilterError = filter.Error

// NewFilterError returns a new FilterError for the given path.
func NewFilterError(model, path string, err error) *FilterError {
	return &FilterError{Model: model, Path: path, Err: err}
}

// IsFilterError returns true if the error is a FilterError.
func IsFilterError(err error) bool {
	if err == nil {
		return false
	}
	var e *FilterError
	return errors.As(err, &e)
}

// NotFoundError represents an exactly-one retrieval that matched no rows.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("relsource: %s: none retrieved", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the model label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given model.
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

// NotSingularError represents an exactly-one retrieval that matched more
// than one row.
type NotSingularError struct {
	label string
	count int // Number of rows matched (-1 if unknown)
}

// Error returns the error string.
func (e *NotSingularError) Error() string {
	if e.count >= 0 {
		return fmt.Sprintf("relsource: %s: more than one retrieved (got %d rows)", e.label, e.count)
	}
	return fmt.Sprintf("relsource: %s: more than one retrieved", e.label)
}

// Is reports whether the target error matches NotSingularError.
// This allows errors.Is(notSingularErr, ErrNotSingular) to return true.
func (e *NotSingularError) Is(err error) bool {
	return err == ErrNotSingular
}

// Label returns the model label.
func (e *NotSingularError) Label() string {
	return e.label
}

// Count returns the number of rows matched, or -1 if unknown.
func (e *NotSingularError) Count() int {
	return e.count
}

// NewNotSingularError returns a new NotSingularError for the given model.
func NewNotSingularError(label string) *NotSingularError {
	return &NotSingularError{label: label, count: -1}
}

// NewNotSingularErrorWithCount returns a new NotSingularError with the row count.
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

// StateError reports a mutation that has nothing to work from: no
// identifying key on the record and no explicit filter on the call.
type StateError struct {
	label string
	op    string // "update" or "delete"
}

// Error returns the error string.
func (e *StateError) Error() string {
	return fmt.Sprintf("relsource: %s: nothing to %s from", e.label, e.op)
}

// Label returns the model label.
func (e *StateError) Label() string {
	return e.label
}

// Op returns the mutation verb that failed.
func (e *StateError) Op() string {
	return e.op
}

// NewStateError returns a new StateError for the given model and verb.
func NewStateError(label, op string) *StateError {
	return &StateError{label: label, op: op}
}

// IsStateError returns true if the error is a StateError.
func IsStateError(err error) bool {
	if err == nil {
		return false
	}
	var e *StateError
	return errors.As(err, &e)
}

// StoreError wraps an error returned by the underlying connection. The
// driver error is never swallowed; constraint violations are meaningful
// to the caller.
type StoreError struct {
	Model string // Model being operated on
	Op    string // Operation (e.g., "create", "retrieve")
	Err   error  // Driver error, verbatim
}

// Error returns the error string.
func (e *StoreError) Error() string {
	return fmt.Sprintf("relsource: %s %s: %v", e.Op, e.Model, e.Err)
}

// Unwrap returns the underlying driver error.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError returns a new StoreError wrapping the driver error.
func NewStoreError(model, op string, err error) *StoreError {
	return &StoreError{Model: model, Op: op, Err: err}
}

// IsStoreError returns true if the error is a StoreError.
func IsStoreError(err error) bool {
	if err == nil {
		return false
	}
	var e *StoreError
	return errors.As(err, &e)
}
