package policy

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownAttribute is returned when an attribute is not registered in the catalog
	ErrUnknownAttribute = errors.New("unknown attribute")

	// ErrMergeAuthority is returned when a family-based draft would be sent
	// with a synthesized definition instead of its overrides
	ErrMergeAuthority = errors.New("family-based policy must be submitted as overrides")
)

// ValidationError describes a user input problem on a single field
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError for field
func Invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// AsValidationError extracts a ValidationError from err
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

func unknownAttribute(name string) error {
	return fmt.Errorf("%w: %s", ErrUnknownAttribute, name)
}
