package engine

import (
	"encoding/json"
	"testing"
)

func TestCallbackContext_RoundTrip(t *testing.T) {
	tests := []CallbackContext{
		{},
		{Phase: PhaseStabilize, Attempts: 1, FleetID: "crf-0123456789abcdef0"},
		{Phase: PhasePrecondition},
		{Phase: PhaseDone, Attempts: 42},
	}

	for _, want := range tests {
		encoded, err := want.Encode()
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		got, err := DecodeCallbackContext(encoded)
		if err != nil {
			t.Fatalf("DecodeCallbackContext(%q) error = %v", encoded, err)
		}
		if got != want {
			t.Errorf("round trip = %+v, want %+v", got, want)
		}
	}
}

func TestDecodeCallbackContext_Empty(t *testing.T) {
	got, err := DecodeCallbackContext("")
	if err != nil {
		t.Fatalf("DecodeCallbackContext() error = %v", err)
	}
	if got != (CallbackContext{}) {
		t.Errorf("expected zero context, got %+v", got)
	}
}

func TestDecodeCallbackContext_Invalid(t *testing.T) {
	for _, in := range []string{
		"not json",
		`{"phase":"sleeping"}`,
		`{"attempts":-1}`,
	} {
		if _, err := DecodeCallbackContext(in); err == nil {
			t.Errorf("DecodeCallbackContext(%q) expected error", in)
		}
	}
}

func TestCallbackContext_Next(t *testing.T) {
	var fresh *CallbackContext
	next := fresh.next("crf-1")
	if next.Phase != PhaseStabilize || next.Attempts != 1 || next.FleetID != "crf-1" {
		t.Errorf("next() from nil = %+v", next)
	}

	again := next.next("crf-1")
	if again.Attempts != 2 {
		t.Errorf("Attempts = %d, want 2", again.Attempts)
	}
	if next.Attempts != 1 {
		t.Error("next() must not modify the receiver")
	}
}

func TestProgressSignal_JSON(t *testing.T) {
	signal := InProgress(OperationCreate, &ResourceModel{ID: "crf-1"}, &CallbackContext{Phase: PhaseStabilize, Attempts: 1, FleetID: "crf-1"})

	data, err := json.Marshal(signal)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded ProgressSignal
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if decoded.Status != StatusInProgress {
		t.Errorf("Status = %s, want IN_PROGRESS", decoded.Status)
	}
	if decoded.CallbackContext == nil || *decoded.CallbackContext != *signal.CallbackContext {
		t.Errorf("CallbackContext = %+v, want %+v", decoded.CallbackContext, signal.CallbackContext)
	}
	if decoded.CallbackDelaySeconds != DefaultCallbackDelaySeconds {
		t.Errorf("CallbackDelaySeconds = %d", decoded.CallbackDelaySeconds)
	}
}

func TestProgressSignal_Err(t *testing.T) {
	if err := Success(OperationRead, nil).Err(); err != nil {
		t.Errorf("Err() on success = %v", err)
	}

	failed := Failed(OperationRead, NewNotFoundError("gone", nil), nil)
	if !IsNotFound(failed.Err()) {
		t.Errorf("Err() = %v, want NotFound", failed.Err())
	}
	if failed.Retryable() {
		t.Error("NotFound must not be retryable")
	}

	decoded := &ProgressSignal{Status: StatusFailed, ErrorKind: ErrorKindThrottling, Message: "slow down"}
	if !IsThrottling(decoded.Err()) {
		t.Errorf("Err() = %v, want Throttling", decoded.Err())
	}

	retry := Failed(OperationDelete, NewServiceInternalError("empty", nil), &CallbackContext{Phase: PhaseStabilize})
	if !retry.Retryable() {
		t.Error("ServiceInternalError with a callback context should be retryable")
	}
}
