package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "throttled",
			err:  &APIError{Throttled: true, StatusCode: 400, ErrorCode: "RequestLimitExceeded", Message: "slow down"},
			want: ErrorKindThrottling,
		},
		{
			name: "throttled wins over server error",
			err:  &APIError{Throttled: true, StatusCode: 503, Message: "slow down"},
			want: ErrorKindThrottling,
		},
		{
			name: "server error",
			err:  &APIError{StatusCode: 500, Message: "boom"},
			want: ErrorKindServiceInternalError,
		},
		{
			name: "server error wins over not found code",
			err:  &APIError{StatusCode: 503, ErrorCode: ErrCodeFleetIDNotFound, Message: "boom"},
			want: ErrorKindServiceInternalError,
		},
		{
			name: "not found",
			err:  &APIError{StatusCode: 400, ErrorCode: ErrCodeFleetIDNotFound, Message: "missing"},
			want: ErrorKindNotFound,
		},
		{
			name: "malformed",
			err:  &APIError{StatusCode: 400, ErrorCode: ErrCodeFleetIDMalformed, Message: "bad id"},
			want: ErrorKindNotFound,
		},
		{
			name: "code compared case-insensitively",
			err:  &APIError{StatusCode: 400, ErrorCode: "invalidcapacityreservationfleetid.notfound", Message: "missing"},
			want: ErrorKindNotFound,
		},
		{
			name: "invalid state transition",
			err:  &APIError{StatusCode: 400, ErrorCode: ErrCodeInvalidStateTransition, Message: "busy"},
			want: ErrorKindNotStabilized,
		},
		{
			// there is no permission kind; this conflates authorization with malformed requests
			name: "unauthorized maps to invalid request",
			err:  &APIError{StatusCode: 403, ErrorCode: ErrCodeUnauthorizedOperation, Message: "denied"},
			want: ErrorKindInvalidRequest,
		},
		{
			name: "unknown code",
			err:  &APIError{StatusCode: 400, ErrorCode: "InvalidParameterValue", Message: "nope"},
			want: ErrorKindGeneralServiceException,
		},
		{
			name: "no status and no code",
			err:  &APIError{Message: "unknown"},
			want: ErrorKindGeneralServiceException,
		},
		{
			name: "wrapped api error",
			err:  fmt.Errorf("describe: %w", &APIError{StatusCode: 400, ErrorCode: ErrCodeFleetIDNotFound}),
			want: ErrorKindNotFound,
		},
		{
			name: "local error keeps its kind",
			err:  NewInvalidInputError("missing id", nil),
			want: ErrorKindInvalidInput,
		},
		{
			name: "transport failure",
			err:  errors.New("connection reset by peer"),
			want: ErrorKindGeneralServiceException,
		},
		{
			name: "context cancelled",
			err:  context.Canceled,
			want: ErrorKindGeneralServiceException,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err)
			if got == nil {
				t.Fatal("TranslateError() returned nil")
			}
			if got.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", got.Kind, tt.want)
			}
			if !errors.Is(got, tt.err) && got != tt.err {
				t.Errorf("translated error does not wrap the original")
			}
		})
	}
}

func TestTranslateError_Nil(t *testing.T) {
	if got := TranslateError(nil); got != nil {
		t.Errorf("TranslateError(nil) = %v, want nil", got)
	}
}

func TestTranslateError_IsPure(t *testing.T) {
	inputs := []error{
		&APIError{Throttled: true},
		&APIError{StatusCode: 502},
		&APIError{ErrorCode: ErrCodeFleetIDMalformed},
		&APIError{ErrorCode: ErrCodeInvalidStateTransition},
		&APIError{ErrorCode: ErrCodeUnauthorizedOperation},
		&APIError{ErrorCode: "Other"},
	}

	first := make([]ErrorKind, len(inputs))
	for i, in := range inputs {
		first[i] = TranslateError(in).Kind
	}

	// replay in reverse order; no call may influence another
	for i := len(inputs) - 1; i >= 0; i-- {
		for n := 0; n < 3; n++ {
			if got := TranslateError(inputs[i]).Kind; got != first[i] {
				t.Errorf("input %d: kind changed from %s to %s", i, first[i], got)
			}
		}
	}
}

func TestTranslateError_KeepsCode(t *testing.T) {
	got := TranslateError(&APIError{StatusCode: 400, ErrorCode: ErrCodeFleetIDNotFound, Message: "missing"})
	if got.Code != ErrCodeFleetIDNotFound {
		t.Errorf("Code = %s, want %s", got.Code, ErrCodeFleetIDNotFound)
	}
	if !errors.Is(got, &Error{Kind: ErrorKindNotFound, Code: ErrCodeFleetIDNotFound}) {
		t.Error("errors.Is should match kind and code")
	}
	if errors.Is(got, &Error{Kind: ErrorKindNotFound, Code: ErrCodeFleetIDMalformed}) {
		t.Error("errors.Is should not match a different code")
	}
}

func TestIsUnauthorized(t *testing.T) {
	if !IsUnauthorized(&APIError{ErrorCode: "unauthorizedoperation"}) {
		t.Error("expected unauthorized")
	}
	if IsUnauthorized(&APIError{ErrorCode: ErrCodeFleetIDNotFound}) {
		t.Error("not found is not unauthorized")
	}
	if IsUnauthorized(errors.New("plain")) {
		t.Error("plain errors are not unauthorized")
	}
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("tick: %w", NewError(ErrorKindThrottling, "slow down", nil))

	if KindOf(err) != ErrorKindThrottling {
		t.Errorf("KindOf() = %s, want Throttling", KindOf(err))
	}
	if !IsThrottling(err) {
		t.Error("IsThrottling() should be true")
	}
	if !IsRetryable(err) {
		t.Error("throttling should be retryable")
	}
	if IsRetryable(NewNotFoundError("gone", nil)) {
		t.Error("not found should not be retryable")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf() of a plain error should be empty")
	}
}

func TestError_Message(t *testing.T) {
	err := NewNotFoundError("fleet is gone", errors.New("remote")).
		WithResource("crf-1").
		WithOperation("read")

	want := "[NotFound] fleet is gone (resource=crf-1, operation=read): remote"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
