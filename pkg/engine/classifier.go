package engine

// Classify maps a reported fleet state to its classification.
// Unknown states are pending; the orchestrator's timeout bounds the wait.
func Classify(state FleetState) Classification {
	switch state {
	case FleetStateActive:
		return ClassStableSuccess
	case FleetStatePartiallyFulfilled:
		return ClassStablePartial
	case FleetStateCancelled, FleetStateFailed, FleetStateExpired:
		return ClassTerminalFailure
	default:
		return ClassPending
	}
}

// Converged reports whether state satisfies the convergence criteria of op.
// Create and Update converge on an active or partially fulfilled fleet.
// Delete converges only on a cancelled fleet.
func Converged(op Operation, state FleetState) bool {
	switch op {
	case OperationDelete:
		return state == FleetStateCancelled
	case OperationCreate, OperationUpdate:
		c := Classify(state)
		return c == ClassStableSuccess || c == ClassStablePartial
	default:
		return false
	}
}

// listedStates are the states a List result keeps.
var listedStates = map[FleetState]bool{
	FleetStateActive:             true,
	FleetStatePartiallyFulfilled: true,
	FleetStateFailed:             true,
}

// IsListed reports whether a fleet in state appears in List results.
func IsListed(state FleetState) bool {
	return listedStates[state]
}

// checkLive validates the single fleet of a Describe response for the read
// paths: terminal fleets are reported as NotFound and transitional ones as
// NotStabilized.
func checkLive(fleet *RemoteFleet) *Error {
	switch Classify(fleet.State) {
	case ClassTerminalFailure:
		return NewNotFoundError("capacity reservation fleet is not in an active state", nil).
			WithResource(fleet.ID).
			WithDetail("state", string(fleet.State))
	case ClassPending:
		return NewNotStabilizedError("capacity reservation fleet is in a transitional state", nil).
			WithResource(fleet.ID).
			WithDetail("state", string(fleet.State))
	default:
		return nil
	}
}
