// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// Contract errors: the caller broke a precondition the engine relies on.
	ErrPreconditionViolation = errors.New("precondition violation")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrAlreadyProcessed = errors.New("already processed")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")
	ErrConcurrencyExhausted   = errors.New("concurrency retries exhausted")
	ErrLockNotAcquired        = errors.New("lock not acquired")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "goal", "habit"
	Op      string // Operation that failed, e.g., "Award", "Achieve"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Progress domain errors
var (
	ErrProgressNotFound = NewDomainError("progress", "Find", ErrNotFound, "progress record not found")
	ErrInvalidPoints    = NewDomainError("progress", "Validate", ErrPreconditionViolation, "points must be positive")
	ErrInvalidUserID    = NewDomainError("progress", "Validate", ErrInvalidID, "user id is required")
	ErrInvalidPeriod    = NewDomainError("progress", "Reset", ErrInvalidInput, "unknown points period")
	ErrVersionConflict  = NewDomainError("progress", "Save", ErrOptimisticLock, "progress record was modified concurrently")
)

// Goal domain errors
var (
	ErrGoalNotFound        = NewDomainError("goal", "Find", ErrNotFound, "goal not found")
	ErrGoalAlreadyAchieved = NewDomainError("goal", "Achieve", ErrAlreadyProcessed, "goal already achieved")
	ErrInvalidGoalTarget   = NewDomainError("goal", "Validate", ErrValueOutOfRange, "target points must be positive")
	ErrInvalidGoalWindow   = NewDomainError("goal", "Validate", ErrInvalidInput, "start date must not be after end date")
	ErrInvalidGoalTitle    = NewDomainError("goal", "Validate", ErrEmptyValue, "goal title is required")
	ErrAchievementExists   = NewDomainError("goal", "Unlock", ErrAlreadyExists, "achievement already exists for goal")
	ErrInvalidRewardType   = NewDomainError("goal", "Validate", ErrInvalidInput, "unknown reward type")
)

// Habit domain errors
var (
	ErrHabitNotFound      = NewDomainError("habit", "Find", ErrNotFound, "habit not found")
	ErrHabitEntryNotFound = NewDomainError("habit", "FindEntry", ErrNotFound, "habit entry not found")
	ErrInvalidHabitTarget = NewDomainError("habit", "Validate", ErrValueOutOfRange, "target count must be at least 1")
	ErrInvalidHabitName   = NewDomainError("habit", "Validate", ErrEmptyValue, "habit name is required")
	ErrInvalidHabitCount  = NewDomainError("habit", "Complete", ErrValueOutOfRange, "count must be at least 1")
	ErrInvalidFrequency   = NewDomainError("habit", "Validate", ErrInvalidInput, "unknown habit frequency")
	ErrInvalidStatsPeriod = NewDomainError("habit", "Statistics", ErrInvalidInput, "period must be week, month or year")
	ErrHabitForeignUser   = NewDomainError("habit", "Complete", ErrInvalidState, "habit belongs to another user")
)

// Activity domain errors
var (
	ErrActionNotFound    = NewDomainError("activity", "Find", ErrNotFound, "action not found")
	ErrInvalidActionID   = NewDomainError("activity", "Validate", ErrInvalidID, "action id is required")
	ErrInvalidActionKind = NewDomainError("activity", "Validate", ErrInvalidInput, "unknown action kind")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrPreconditionViolation)
}

// IsPreconditionViolation checks if the caller passed input the engine does not accept.
func IsPreconditionViolation(err error) bool {
	return errors.Is(err, ErrPreconditionViolation)
}

// IsConflict checks if the error is an optimistic-concurrency conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOptimisticLock) || errors.Is(err, ErrConcurrentModification)
}

// IsRetryable checks if the operation can be retried by the caller.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrConcurrencyExhausted) ||
		errors.Is(err, ErrLockNotAcquired)
}

// ConcurrencyExhausted wraps the last conflict after the retry budget ran out.
func ConcurrencyExhausted(op string, attempts int, err error) *DomainError {
	return WrapError("progress", op, ErrConcurrencyExhausted,
		fmt.Sprintf("gave up after %d attempts", attempts), err)
}
