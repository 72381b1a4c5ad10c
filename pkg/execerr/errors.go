// Package execerr classifies node execution failures into retriable and
// non-retriable kinds.
package execerr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is the failure category of an Error.
type Kind string

const (
	// KindValidation covers missing or malformed node configuration.
	KindValidation Kind = "validation"
	// KindDependency covers credential lookup, decryption and format failures.
	KindDependency Kind = "dependency"
	// KindRejected covers requests an upstream refused (4xx other than 408/429).
	KindRejected Kind = "rejected"
	// KindTransport covers network failures, timeouts, throttling and 5xx.
	KindTransport Kind = "transport"
	// KindConfiguration covers process-level misconfiguration such as an unknown node type.
	KindConfiguration Kind = "configuration"
)

var (
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrCyclicWorkflow  = errors.New("workflow graph contains a cycle")
	ErrNoTrigger       = errors.New("workflow has no trigger node")
)

// Error is a classified execution failure. Op names the failing component,
// for example "OpenAI node".
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retriable reports whether running the same step again may succeed.
func (e *Error) Retriable() bool {
	return e.Kind == KindTransport
}

func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Dependency(op, message string, err error) *Error {
	return &Error{Kind: KindDependency, Op: op, Message: message, Err: err}
}

func Rejected(op, message string, err error) *Error {
	return &Error{Kind: KindRejected, Op: op, Message: message, Err: err}
}

func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Err: err}
}

func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// IsRetriable reports whether err may succeed on another attempt. Classified
// errors answer by kind, cancellation is final and anything unclassified is
// treated as transient.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified.Retriable()
	}

	if errors.Is(err, context.Canceled) {
		return false
	}

	return true
}

// KindOf returns the kind of a classified error, or KindTransport.
func KindOf(err error) Kind {
	var classified *Error
	if errors.As(err, &classified) {
		return classified.Kind
	}

	return KindTransport
}

// HTTPError is a non-2xx response from an external endpoint or provider.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// FromStatus classifies an upstream HTTP failure: 408, 429 and 5xx stay
// retriable; any other 4xx is a rejected request.
func FromStatus(op string, statusCode int, body string) *Error {
	httpErr := &HTTPError{StatusCode: statusCode, Message: body}

	if statusCode == http.StatusTooManyRequests ||
		statusCode == http.StatusRequestTimeout ||
		statusCode >= http.StatusInternalServerError {
		return Transport(op, httpErr)
	}

	return Rejected(op, "request rejected", httpErr)
}
