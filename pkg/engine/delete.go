package engine

import (
	"context"

	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// delete cancels the fleet and polls it until it is cancelled. A fleet that
// is already gone counts as deleted.
func (e *Engine) delete(ctx context.Context, req *Request) *ProgressSignal {
	model := req.desired()
	if err := requireID(&model); err != nil {
		return Failed(OperationDelete, err, nil)
	}

	if req.CallbackContext.resumesStabilization() {
		return e.stabilize(ctx, req, model)
	}

	logger := telemetry.FromContext(ctx)

	fleet, err := e.describe(ctx, model.ID, OperationDelete)
	switch {
	case err != nil && err.Kind == ErrorKindNotFound:
		logger.Info("fleet not found, treating as deleted")
		return Success(OperationDelete, nil)
	case err != nil:
		return Failed(OperationDelete, err, nil)
	}

	switch {
	case fleet.State.IsTerminal():
		logger.Infof("fleet already in terminal state %s, treating as deleted", fleet.State)
		return Success(OperationDelete, nil)
	case fleet.State == FleetStateCancelling:
		logger.Info("fleet is already cancelling")
		return e.stabilize(ctx, req, model)
	case fleet.State.IsTransitional():
		return Failed(OperationDelete, NewNotStabilizedError("capacity reservation fleet is in a transitional state", nil).
			WithResource(model.ID).
			WithOperation(string(OperationDelete)).
			WithDetail("state", string(fleet.State)), nil)
	}

	logger.Info("cancelling capacity reservation fleet")
	resp, callErr := e.api.CancelFleets(ctx, buildCancelRequest(model.ID))
	if callErr != nil {
		logger.WithError(callErr).Error("cancel capacity reservation fleet failed")
		return Failed(OperationDelete, TranslateError(callErr).
			WithResource(model.ID).
			WithOperation(string(OperationDelete)), nil)
	}
	if cerr := checkCancelResponse(resp, model.ID); cerr != nil {
		logger.Errorf("cancel capacity reservation fleet was not accepted: %s", cerr.Message)
		return Failed(OperationDelete, cerr, nil)
	}

	return e.stabilize(ctx, req, model)
}

// checkCancelResponse treats a missing response as unconfirmed and any
// failed entry as a failure, even when other entries succeeded.
func checkCancelResponse(resp *CancelFleetsResponse, id string) *Error {
	if resp == nil {
		return NewNotStabilizedError("cancellation of capacity reservation fleet could not be confirmed", nil).
			WithResource(id).
			WithOperation(string(OperationDelete))
	}
	if len(resp.Failed) > 0 {
		e := NewServiceInternalError("CancelCapacityReservationFleets failed", nil).
			WithResource(id).
			WithOperation(string(OperationDelete)).
			WithDetail("failed", len(resp.Failed))
		if code := resp.Failed[0].ErrorCode; code != "" {
			e = e.WithCode(code)
		}
		return e
	}
	return nil
}
