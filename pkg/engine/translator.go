package engine

import (
	"errors"
	"strings"
)

// TranslateError maps any failure to a classified *Error.
//
// Control plane failures (*APIError) go through the translation table below,
// first match wins. Errors that are already classified keep their kind.
// Anything else, such as a transport failure in the client, is a
// GeneralServiceException.
func TranslateError(err error) *Error {
	if err == nil {
		return nil
	}

	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return NewError(ErrorKindGeneralServiceException, "control plane call failed", err)
	}

	return NewError(translateAPIError(apiErr), apiErr.Message, err).WithCode(apiErr.ErrorCode)
}

func translateAPIError(e *APIError) ErrorKind {
	switch {
	case e.Throttled:
		return ErrorKindThrottling
	case e.StatusCode >= 500:
		return ErrorKindServiceInternalError
	case strings.EqualFold(e.ErrorCode, ErrCodeFleetIDNotFound),
		strings.EqualFold(e.ErrorCode, ErrCodeFleetIDMalformed):
		return ErrorKindNotFound
	case strings.EqualFold(e.ErrorCode, ErrCodeInvalidStateTransition):
		// the caller tried to mutate a fleet that is still transitioning
		return ErrorKindNotStabilized
	case strings.EqualFold(e.ErrorCode, ErrCodeUnauthorizedOperation):
		// there is no permission kind in the taxonomy
		return ErrorKindInvalidRequest
	default:
		return ErrorKindGeneralServiceException
	}
}

// IsUnauthorized reports whether err is a control plane permission failure.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.EqualFold(apiErr.ErrorCode, ErrCodeUnauthorizedOperation)
}
