package services

import (
	"errors"
	"fmt"

	"github.com/upb/cluster-policy-builder/internal/policy"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
	ErrorTypeExternal     ErrorType = "external"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrPolicyNotFound   = NewDomainError(ErrorTypeNotFound, "policy not found", nil)
	ErrFamilyNotFound   = NewDomainError(ErrorTypeNotFound, "policy family not found", nil)
	ErrUnknownAttribute = NewDomainError(ErrorTypeNotFound, "unknown attribute", nil)
	ErrUnknownSource    = NewDomainError(ErrorTypeNotFound, "unknown catalog source", nil)
	ErrDraftNotFound    = NewDomainError(ErrorTypeNotFound, "draft session not found", nil)

	// Validation Errors
	ErrInvalidInput      = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidConstraint = NewDomainError(ErrorTypeValidation, "invalid constraint", nil)
	ErrNameRequired      = NewDomainError(ErrorTypeValidation, "policy name is required", nil)
	ErrNothingToClone    = NewDomainError(ErrorTypeValidation, "no stored policy is loaded", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)

	// Conflict Errors
	ErrSubmissionInProgress = NewDomainError(ErrorTypeConflict, "a submission is already in progress", nil)

	// Internal Errors
	ErrInternal       = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError  = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrCacheFailed    = NewDomainError(ErrorTypeInternal, "cache operation failed", nil)
	ErrMergeAuthority = NewDomainError(ErrorTypeInternal, "family-based policy must be submitted as overrides", nil)

	// External Service Errors
	ErrWorkspaceUnavailable = NewDomainError(ErrorTypeExternal, "workspace unavailable", nil)
	ErrWorkspaceTimeout     = NewDomainError(ErrorTypeExternal, "workspace timeout", nil)
	ErrWorkspaceError       = NewDomainError(ErrorTypeExternal, "workspace error", nil)
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeNotFound
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeValidation
	}
	return false
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeUnauthorized
	}
	return false
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeConflict
	}
	return false
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeInternal
	}
	return false
}

// IsExternalError checks if an error is a remote workspace error
func IsExternalError(err error) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == ErrorTypeExternal
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapExternal wraps an error as a remote workspace error
func WrapExternal(message string, err error) error {
	return NewDomainError(ErrorTypeExternal, message, err)
}

// FromPolicyError translates errors raised by the constraint model into
// domain errors. Errors that already carry a domain error are returned as is.
func FromPolicyError(err error) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	if ve, ok := policy.AsValidationError(err); ok {
		return NewDomainError(ErrorTypeValidation, ve.Error(), err).
			WithDetail("field", ve.Field).
			WithDetail("reason", ve.Reason)
	}
	switch {
	case errors.Is(err, policy.ErrUnknownAttribute):
		return NewDomainError(ErrorTypeNotFound, err.Error(), err)
	case errors.Is(err, policy.ErrMergeAuthority):
		return NewDomainError(ErrorTypeInternal, ErrMergeAuthority.Message, err)
	}
	return WrapInternal("constraint model failure", err)
}
