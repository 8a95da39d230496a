// Package engine provides the reconciliation engine for capacity reservation fleets.
//
// # Overview
//
// The engine drives a fleet from its current state towards a desired state
// through a remote control plane. Every call to Execute is one "tick": it
// issues at most one mutating call, checks convergence once and returns a
// ProgressSignal. The engine never sleeps and never retries; an orchestrator
// re-invokes it with the returned CallbackContext until the signal is
// terminal.
//
//	signal := eng.Execute(ctx, &engine.Request{
//	    Operation:    engine.OperationCreate,
//	    DesiredModel: model,
//	})
//	for signal.Status == engine.StatusInProgress {
//	    time.Sleep(time.Duration(signal.CallbackDelaySeconds) * time.Second)
//	    signal = eng.Execute(ctx, &engine.Request{
//	        Operation:       engine.OperationCreate,
//	        DesiredModel:    signal.Model,
//	        CallbackContext: signal.CallbackContext,
//	    })
//	}
//
// # Lifecycle
//
// Mutating operations move through init, precondition, mutate and stabilize
// phases before they are done:
//
//   - Create: submit the fleet, bind its identifier, poll until active or
//     partially fulfilled, then read the full model.
//   - Read: a single Describe. Never in progress.
//   - Update: check that the fleet is live, modify it, poll, then read.
//   - Delete: check that the fleet still exists, cancel it, poll until
//     cancelled. A fleet that is already gone counts as deleted.
//   - List: one Describe page filtered to active, partially fulfilled and
//     failed fleets. Never in progress.
//
// # State Classification
//
// Remote fleet states are classified as pending, stable-success,
// stable-partial or terminal-failure (see Classify). Read paths report
// terminal fleets as NotFound.
//
// # Error Classification
//
// Every failure surfaces as an *Error with one of the canonical kinds:
//
//   - NotFound: the fleet does not exist or is no longer usable
//   - NotStabilized: the fleet is mid-transition
//   - Throttling: the control plane rate limited the call
//   - InvalidRequest: the control plane refused the request
//   - ServiceInternalError: the provider failed or was inconsistent
//   - GeneralServiceException: any other remote failure
//   - InvalidInput: the input cannot be acted upon at all
//
// Remote failures are translated once, at the call site, by TranslateError.
// A FAILED signal emitted after the mutation carries the callback context,
// so an orchestrator may retry the tick when the kind is retryable.
package engine
