package engine

import (
	"context"

	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// update modifies a live fleet and polls it until it settles.
func (e *Engine) update(ctx context.Context, req *Request) *ProgressSignal {
	model := req.desired()
	if err := requireID(&model); err != nil {
		return Failed(OperationUpdate, err, nil)
	}
	if req.PreviousModel != nil && req.PreviousModel.ID != "" && req.PreviousModel.ID != model.ID {
		return Failed(OperationUpdate, NewInvalidRequestError("capacity_reservation_fleet_id cannot be changed", nil).
			WithResource(req.PreviousModel.ID).
			WithDetail("desired_id", model.ID), nil)
	}
	if model.RemoveEndDate != nil && model.NoRemoveEndDate != nil {
		return Failed(OperationUpdate, NewInvalidRequestError("remove_end_date and no_remove_end_date cannot both be set", nil).
			WithResource(model.ID), nil)
	}

	if req.CallbackContext.resumesStabilization() {
		return e.stabilize(ctx, req, model)
	}

	logger := telemetry.FromContext(ctx)

	fleet, err := e.describe(ctx, model.ID, OperationUpdate)
	if err != nil {
		return Failed(OperationUpdate, err, nil)
	}
	if err := checkLive(fleet); err != nil {
		return Failed(OperationUpdate, err.WithOperation(string(OperationUpdate)), nil)
	}

	logger.Info("modifying capacity reservation fleet")
	resp, callErr := e.api.ModifyFleet(ctx, buildModifyRequest(&model))
	if callErr != nil {
		logger.WithError(callErr).Error("modify capacity reservation fleet failed")
		return Failed(OperationUpdate, TranslateError(callErr).
			WithResource(model.ID).
			WithOperation(string(OperationUpdate)), nil)
	}
	if resp == nil || !resp.Return {
		logger.Error("modify capacity reservation fleet returned false")
		return Failed(OperationUpdate, NewServiceInternalError("ModifyCapacityReservationFleet failed", nil).
			WithResource(model.ID).
			WithOperation(string(OperationUpdate)), nil)
	}

	return e.stabilize(ctx, req, model)
}
