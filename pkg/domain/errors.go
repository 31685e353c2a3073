package domain

import "fmt"

// NotFoundError indicates the requested resource does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

// NewNotFoundError creates a NotFoundError for the given resource and identifier.
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ForbiddenError indicates the actor is not allowed to perform the operation.
type ForbiddenError struct {
	Message string
}

// NewForbiddenError creates a ForbiddenError with the given message.
func NewForbiddenError(message string) *ForbiddenError {
	return &ForbiddenError{Message: message}
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// InvalidStateError indicates the entity's current state does not permit the
// requested transition. Current is always populated so clients can display
// where the entity actually is.
type InvalidStateError struct {
	Current   string
	Requested string
}

// NewInvalidStateError creates an InvalidStateError for a rejected transition.
func NewInvalidStateError(current, requested string) *InvalidStateError {
	return &InvalidStateError{Current: current, Requested: requested}
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot transition to %s: current status is %s", e.Requested, e.Current)
}

// ValidationError indicates a missing or malformed input field.
type ValidationError struct {
	Message string
}

// NewValidationError creates a ValidationError with the given message.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AmountMismatchError indicates a monetary amount did not equal the expected
// value. Both amounts are carried so the client can explain the failure
// without a second round trip.
type AmountMismatchError struct {
	Expected int64
	Actual   int64
}

// NewAmountMismatchError creates an AmountMismatchError with expected and actual amounts.
func NewAmountMismatchError(expected, actual int64) *AmountMismatchError {
	return &AmountMismatchError{Expected: expected, Actual: actual}
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("amount mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ExpiredError indicates a validity window has passed.
type ExpiredError struct {
	Message string
}

// NewExpiredError creates an ExpiredError with the given message.
func NewExpiredError(message string) *ExpiredError {
	return &ExpiredError{Message: message}
}

func (e *ExpiredError) Error() string {
	return e.Message
}

// ConflictError indicates the entity was concurrently modified by another
// transaction (optimistic-lock failure).
type ConflictError struct {
	Message string
}

// NewConflictError creates a ConflictError with the given message.
func NewConflictError(message string) *ConflictError {
	return &ConflictError{Message: message}
}

func (e *ConflictError) Error() string {
	return e.Message
}
