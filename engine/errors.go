/*
errors.go - Centralized error types for the pro-forma engine

PURPOSE:
  The calculation itself never fails: degenerate ratios collapse to zero.
  Errors exist for the opt-in validation pass and for the parameter store.

ERROR CATEGORIES:
  1. Validation errors - Inputs outside their documented domain
  2. Lookup errors - Unknown segments, streams, variants, scenarios

USAGE:
  if err := engine.Validate(model); err != nil {
      var verr *engine.ValidationError
      if errors.As(err, &verr) {
          log.Printf("bad field %s: %s", verr.Field, verr.Reason)
      }
  }

SEE ALSO:
  - validate.go: Produces ValidationError
  - store.go: Uses ErrScenarioNotFound
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidParameter is wrapped by every ValidationError.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidCaptureModel is returned when a capture model is missing or
	// names an unknown kind or mode.
	ErrInvalidCaptureModel = errors.New("invalid capture model")

	// ErrUnknownSegment is returned when an override names a segment that is
	// not part of the model.
	ErrUnknownSegment = errors.New("unknown segment")

	// ErrUnknownStream is returned when a stream key is not recognised.
	ErrUnknownStream = errors.New("unknown revenue stream")

	// ErrUnknownVariant is returned when a preset variant does not exist.
	ErrUnknownVariant = errors.New("unknown variant")

	// ErrScenarioNotFound is returned by stores when a scenario id is absent.
	ErrScenarioNotFound = errors.New("scenario not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field of a rejected model.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
	cause  error
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s (%s): %s", e.Field, e.Value, e.Reason)
}

// Unwrap exposes both ErrInvalidParameter and the more specific cause, if any.
func (e *ValidationError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrInvalidParameter, e.cause}
	}
	return []error{ErrInvalidParameter}
}

func invalid(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: fmt.Sprint(value), Reason: reason}
}

func invalidWith(cause error, field string, value any, reason string) *ValidationError {
	e := invalid(field, value, reason)
	e.cause = cause
	return e
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidParameter) ||
		errors.Is(err, ErrInvalidCaptureModel) ||
		errors.Is(err, ErrUnknownSegment) ||
		errors.Is(err, ErrUnknownStream) ||
		errors.Is(err, ErrUnknownVariant)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScenarioNotFound)
}
