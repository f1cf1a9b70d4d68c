package domain

import "fmt"

// ValidationError reports an invariant violation on a write. The write is
// rejected before any persistence, so it is never partially applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for a named field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a lookup of an unknown entity. It carries no retry
// semantics; it propagates directly to the caller.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

// InvalidPriceError reports a non-positive current or reference price passed
// to the demand projector. Pricing is owned by the external trade system, so
// no fallback price is synthesized; the caller must retry with corrected input.
type InvalidPriceError struct {
	CurrentPrice   float64
	ReferencePrice float64
}

func (e *InvalidPriceError) Error() string {
	return fmt.Sprintf("invalid price: current=%.4f reference=%.4f (both must be positive)", e.CurrentPrice, e.ReferencePrice)
}

// InvalidStateError reports an attempt to resolve an already-terminal mobility
// event. Terminal events are immutable; this is a caller error, not a
// transient condition.
type InvalidStateError struct {
	EventID string
	Outcome Outcome
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("mobility event %s is already %s and cannot be resolved again", e.EventID, e.Outcome)
}

// InsufficientResourcesError reports a mobility attempt whose resource cost
// exceeds the cohort's available capacity. The attempt is rejected before any
// event row is created, so nothing needs rolling back.
type InsufficientResourcesError struct {
	EventType EventType
	Required  float64
	Available float64
}

func (e *InsufficientResourcesError) Error() string {
	return fmt.Sprintf("insufficient resources for %s: required %.2f, available %.2f", e.EventType, e.Required, e.Available)
}
