// Package services holds the business rules applied before workflows are
// stored or triggered.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/nodebase/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest         = errors.New("invalid request")
	ErrWorkflowNil            = errors.New("workflow cannot be nil")
	ErrWorkflowIDRequired     = errors.New("workflow ID is required")
	ErrMultipleManualTriggers = errors.New("workflow can only have one manual trigger")
	ErrInvalidGraph           = errors.New("invalid workflow graph")
	ErrInvalidNodeData        = errors.New("invalid node data")

	// ErrWorkflowNotFound is returned when a workflow is not found (404 Not Found).
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrWorkflowIDRequired) ||
		errors.Is(err, ErrMultipleManualTriggers) ||
		errors.Is(err, ErrInvalidGraph) ||
		errors.Is(err, ErrInvalidNodeData)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
