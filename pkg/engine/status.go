package engine

import (
	"encoding/json"
	"fmt"
)

// OperationStatus is the status carried by a progress signal.
type OperationStatus string

const (
	// StatusSuccess indicates the operation reached its goal.
	StatusSuccess OperationStatus = "SUCCESS"

	// StatusInProgress indicates the engine must be invoked again with the callback context.
	StatusInProgress OperationStatus = "IN_PROGRESS"

	// StatusFailed indicates the operation failed with a canonical error kind.
	StatusFailed OperationStatus = "FAILED"
)

// IsTerminal returns true if the orchestrator should stop re-invoking the engine.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Validate checks if the operation status is valid.
func (s OperationStatus) Validate() error {
	switch s {
	case StatusSuccess, StatusInProgress, StatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid operation status: %s", s)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s OperationStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *OperationStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = OperationStatus(str)
	return s.Validate()
}

// Operation is the lifecycle operation requested from the engine.
type Operation string

const (
	// OperationCreate provisions a new fleet.
	OperationCreate Operation = "create"

	// OperationRead describes an existing fleet.
	OperationRead Operation = "read"

	// OperationUpdate modifies an existing fleet.
	OperationUpdate Operation = "update"

	// OperationDelete cancels an existing fleet.
	OperationDelete Operation = "delete"

	// OperationList pages through fleets.
	OperationList Operation = "list"
)

// IsMutating returns true if the operation issues a mutating remote call.
func (o Operation) IsMutating() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationDelete
}

// IsSynchronous returns true if the operation never reports IN_PROGRESS.
func (o Operation) IsSynchronous() bool {
	return o == OperationRead || o == OperationList
}

// Validate checks if the operation is valid.
func (o Operation) Validate() error {
	switch o {
	case OperationCreate, OperationRead, OperationUpdate, OperationDelete, OperationList:
		return nil
	default:
		return fmt.Errorf("invalid operation: %s", o)
	}
}

// ParseOperation converts a string to an Operation.
func ParseOperation(s string) (Operation, error) {
	op := Operation(s)
	if err := op.Validate(); err != nil {
		return "", err
	}
	return op, nil
}

// Phase marks how far an operation got before it suspended.
type Phase string

const (
	// PhaseInit is the phase of a fresh invocation.
	PhaseInit Phase = "init"

	// PhasePrecondition is waiting on the existence check before a mutation.
	PhasePrecondition Phase = "precondition"

	// PhaseMutate is issuing the mutating call.
	PhaseMutate Phase = "mutate"

	// PhaseStabilize is waiting for an issued mutation to converge.
	PhaseStabilize Phase = "stabilize"

	// PhaseDone is materializing the final model.
	PhaseDone Phase = "done"
)

// Validate checks if the phase is valid. The empty phase is treated as init.
func (p Phase) Validate() error {
	switch p {
	case "", PhaseInit, PhasePrecondition, PhaseMutate, PhaseStabilize, PhaseDone:
		return nil
	default:
		return fmt.Errorf("invalid phase: %s", p)
	}
}

// FleetState is the lifecycle state reported by the control plane.
type FleetState string

const (
	FleetStateSubmitted          FleetState = "submitted"
	FleetStateActive             FleetState = "active"
	FleetStatePartiallyFulfilled FleetState = "partially_fulfilled"
	FleetStateModifying          FleetState = "modifying"
	FleetStateCancelling         FleetState = "cancelling"
	FleetStateCancelled          FleetState = "cancelled"
	FleetStateExpiring           FleetState = "expiring"
	FleetStateExpired            FleetState = "expired"
	FleetStateFailed             FleetState = "failed"
)

// AllFleetStates lists every state the control plane is known to report.
var AllFleetStates = []FleetState{
	FleetStateSubmitted,
	FleetStateActive,
	FleetStatePartiallyFulfilled,
	FleetStateModifying,
	FleetStateCancelling,
	FleetStateCancelled,
	FleetStateExpiring,
	FleetStateExpired,
	FleetStateFailed,
}

// IsTransitional returns true if the control plane is still acting on the fleet.
func (s FleetState) IsTransitional() bool {
	return Classify(s) == ClassPending
}

// IsTerminal returns true if no further convergence is expected without caller action.
func (s FleetState) IsTerminal() bool {
	return s == FleetStateCancelled || s == FleetStateFailed || s == FleetStateExpired
}

// Classification is the State Classifier's reading of a fleet state.
type Classification string

const (
	// ClassPending means the fleet is still converging; poll again.
	ClassPending Classification = "pending"

	// ClassStableSuccess means the fleet is fully active.
	ClassStableSuccess Classification = "stable-success"

	// ClassStablePartial means the fleet is active with partial capacity.
	ClassStablePartial Classification = "stable-partial"

	// ClassTerminalFailure means the fleet is gone or unusable.
	ClassTerminalFailure Classification = "terminal-failure"
)
