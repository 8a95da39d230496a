package engine

import (
	"errors"
	"fmt"
)

// ErrorKind is the canonical classification of a failed invocation.
// It is what the orchestrator sees in a FAILED progress signal.
type ErrorKind string

const (
	// ErrorKindNotFound indicates the fleet does not exist or is no longer usable.
	ErrorKindNotFound ErrorKind = "NotFound"

	// ErrorKindNotStabilized indicates the fleet is mid-transition and cannot
	// be acted upon, or a mutation could not be confirmed.
	ErrorKindNotStabilized ErrorKind = "NotStabilized"

	// ErrorKindThrottling indicates the control plane rejected the call because of rate limits.
	ErrorKindThrottling ErrorKind = "Throttling"

	// ErrorKindInvalidRequest indicates the caller asked for something the control plane refuses.
	ErrorKindInvalidRequest ErrorKind = "InvalidRequest"

	// ErrorKindServiceInternalError indicates a provider-side failure or inconsistency.
	ErrorKindServiceInternalError ErrorKind = "ServiceInternalError"

	// ErrorKindGeneralServiceException is the catch-all for remote failures.
	ErrorKindGeneralServiceException ErrorKind = "GeneralServiceException"

	// ErrorKindInvalidInput indicates the input model cannot be acted upon at all.
	ErrorKindInvalidInput ErrorKind = "InvalidInput"
)

// Validate checks if the error kind is one of the canonical kinds.
func (k ErrorKind) Validate() error {
	switch k {
	case ErrorKindNotFound, ErrorKindNotStabilized, ErrorKindThrottling,
		ErrorKindInvalidRequest, ErrorKindServiceInternalError,
		ErrorKindGeneralServiceException, ErrorKindInvalidInput:
		return nil
	default:
		return fmt.Errorf("invalid error kind: %s", k)
	}
}

// Error is a classified engine failure with context.
type Error struct {
	// Kind is the canonical error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is the remote error code, if the failure came from the control plane.
	Code string `json:"code,omitempty"`

	// Resource is the fleet identifier involved, if known.
	Resource string `json:"resource,omitempty"`

	// Operation is the lifecycle operation being performed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`

	// Details contains additional context-specific information.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Kind, e.Message)
	if e.Resource != "" && e.Operation != "" {
		msg = fmt.Sprintf("%s (resource=%s, operation=%s)", msg, e.Resource, e.Operation)
	} else if e.Resource != "" {
		msg = fmt.Sprintf("%s (resource=%s)", msg, e.Resource)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain inspection.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
// A target with a Code only matches errors carrying that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != e.Code {
		return false
	}
	return e.Kind == t.Kind
}

// NewError creates a new classified error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a NotFound error.
func NewNotFoundError(message string, err error) *Error {
	return NewError(ErrorKindNotFound, message, err)
}

// NewNotStabilizedError creates a NotStabilized error.
func NewNotStabilizedError(message string, err error) *Error {
	return NewError(ErrorKindNotStabilized, message, err)
}

// NewServiceInternalError creates a ServiceInternalError error.
func NewServiceInternalError(message string, err error) *Error {
	return NewError(ErrorKindServiceInternalError, message, err)
}

// NewInvalidRequestError creates an InvalidRequest error.
func NewInvalidRequestError(message string, err error) *Error {
	return NewError(ErrorKindInvalidRequest, message, err)
}

// NewInvalidInputError creates an InvalidInput error.
func NewInvalidInputError(message string, err error) *Error {
	return NewError(ErrorKindInvalidInput, message, err)
}

// WithResource adds resource context to an error.
func (e *Error) WithResource(resourceID string) *Error {
	e.Resource = resourceID
	return e
}

// WithOperation adds operation context to an error.
func (e *Error) WithOperation(operation string) *Error {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *Error) WithCode(code string) *Error {
	e.Code = code
	return e
}

// WithDetail adds a detail field to the error context.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// KindOf returns the kind of a classified error, or an empty kind.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound returns true if the error is classified as NotFound.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrorKindNotFound
}

// IsNotStabilized returns true if the error is classified as NotStabilized.
func IsNotStabilized(err error) bool {
	return KindOf(err) == ErrorKindNotStabilized
}

// IsThrottling returns true if the error is classified as Throttling.
func IsThrottling(err error) bool {
	return KindOf(err) == ErrorKindThrottling
}

// IsRetryable returns true if re-running the same tick may succeed.
// Throttling, provider-side failures and mid-transition fleets are retryable.
func IsRetryable(err error) bool {
	return IsRetryableKind(KindOf(err))
}

// IsRetryableKind is IsRetryable for a bare kind, as found in a progress signal.
func IsRetryableKind(kind ErrorKind) bool {
	switch kind {
	case ErrorKindThrottling, ErrorKindServiceInternalError, ErrorKindNotStabilized:
		return true
	default:
		return false
	}
}
