package engine

import (
	"context"
	"fmt"
)

// ExampleEngine_Execute drives a create to completion. The caller re-invokes
// the engine with the callback context of every IN_PROGRESS signal.
func ExampleEngine_Execute() {
	api := newMockControlPlane().thenDescribe("crf-0123456789abcdef0", FleetStateSubmitted, FleetStateActive)
	api.createResp = &CreateFleetResponse{FleetID: "crf-0123456789abcdef0", State: FleetStateSubmitted}

	eng := New(api)
	req := &Request{Operation: OperationCreate, DesiredModel: desiredFleet()}

	for {
		signal := eng.Execute(context.Background(), req)
		fmt.Println(signal.Status)
		if signal.Status.IsTerminal() {
			fmt.Println(signal.Model.ID, *signal.Model.TotalTargetCapacity)
			break
		}
		if signal.Model != nil {
			req.DesiredModel = signal.Model
		}
		req.CallbackContext = signal.CallbackContext
	}

	// Output:
	// IN_PROGRESS
	// SUCCESS
	// crf-0123456789abcdef0 4
}

// ExampleConverged shows which described states end an update.
func ExampleConverged() {
	for _, state := range []FleetState{FleetStateModifying, FleetStateActive, FleetStateFailed} {
		fmt.Println(state, Classify(state), Converged(OperationUpdate, state))
	}

	// Output:
	// modifying pending false
	// active stable-success true
	// failed terminal-failure false
}
