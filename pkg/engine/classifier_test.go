package engine

import (
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		state FleetState
		want  Classification
	}{
		{FleetStateSubmitted, ClassPending},
		{FleetStateModifying, ClassPending},
		{FleetStateCancelling, ClassPending},
		{FleetStateExpiring, ClassPending},
		{FleetStateActive, ClassStableSuccess},
		{FleetStatePartiallyFulfilled, ClassStablePartial},
		{FleetStateCancelled, ClassTerminalFailure},
		{FleetStateFailed, ClassTerminalFailure},
		{FleetStateExpired, ClassTerminalFailure},
		{FleetState("rebalancing"), ClassPending},
		{FleetState(""), ClassPending},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := Classify(tt.state); got != tt.want {
				t.Errorf("Classify(%q) = %s, want %s", tt.state, got, tt.want)
			}
		})
	}
}

func TestConverged_CreateAndUpdate(t *testing.T) {
	for _, op := range []Operation{OperationCreate, OperationUpdate} {
		for _, state := range AllFleetStates {
			want := state == FleetStateActive || state == FleetStatePartiallyFulfilled
			if got := Converged(op, state); got != want {
				t.Errorf("Converged(%s, %s) = %v, want %v", op, state, got, want)
			}
		}
	}
}

func TestConverged_DeleteOnlyOnCancelled(t *testing.T) {
	for _, state := range AllFleetStates {
		want := state == FleetStateCancelled
		if got := Converged(OperationDelete, state); got != want {
			t.Errorf("Converged(delete, %s) = %v, want %v", state, got, want)
		}
	}
}

func TestConverged_SynchronousOperations(t *testing.T) {
	for _, op := range []Operation{OperationRead, OperationList} {
		if Converged(op, FleetStateActive) {
			t.Errorf("Converged(%s, active) should be false", op)
		}
	}
}

func TestIsListed(t *testing.T) {
	listed := map[FleetState]bool{
		FleetStateActive:             true,
		FleetStatePartiallyFulfilled: true,
		FleetStateFailed:             true,
	}
	for _, state := range AllFleetStates {
		if got := IsListed(state); got != listed[state] {
			t.Errorf("IsListed(%s) = %v, want %v", state, got, listed[state])
		}
	}
}

func TestCheckLive(t *testing.T) {
	tests := []struct {
		state    FleetState
		wantKind ErrorKind
	}{
		{FleetStateActive, ""},
		{FleetStatePartiallyFulfilled, ""},
		{FleetStateFailed, ErrorKindNotFound},
		{FleetStateExpired, ErrorKindNotFound},
		{FleetStateCancelled, ErrorKindNotFound},
		{FleetStateSubmitted, ErrorKindNotStabilized},
		{FleetStateModifying, ErrorKindNotStabilized},
		{FleetStateCancelling, ErrorKindNotStabilized},
		{FleetStateExpiring, ErrorKindNotStabilized},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			fleet := testFleet("crf-1", tt.state)
			err := checkLive(&fleet)
			if tt.wantKind == "" {
				if err != nil {
					t.Fatalf("checkLive() unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("checkLive() expected %s error", tt.wantKind)
			}
			if err.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", err.Kind, tt.wantKind)
			}
			if err.Resource != "crf-1" {
				t.Errorf("Resource = %s, want crf-1", err.Resource)
			}
			if err.Details["state"] != string(tt.state) {
				t.Errorf("Details[state] = %v, want %s", err.Details["state"], tt.state)
			}
		})
	}
}

func TestFleetState_IsTransitional(t *testing.T) {
	for _, state := range AllFleetStates {
		want := Classify(state) == ClassPending
		if got := state.IsTransitional(); got != want {
			t.Errorf("%s.IsTransitional() = %v, want %v", state, got, want)
		}
	}
}
