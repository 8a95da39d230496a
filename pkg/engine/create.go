package engine

import (
	"context"

	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// create submits the fleet on the first tick and polls it on every tick.
// A failing Create call fails fast; nothing is retried at this layer.
func (e *Engine) create(ctx context.Context, req *Request) *ProgressSignal {
	model := req.desired()

	if req.CallbackContext.resumesStabilization() {
		if req.CallbackContext.FleetID != "" {
			model.ID = req.CallbackContext.FleetID
		}
		if err := requireID(&model); err != nil {
			return Failed(OperationCreate, err, nil)
		}
		return e.stabilize(ctx, req, model)
	}

	logger := telemetry.FromContext(ctx)
	logger.Info("creating capacity reservation fleet")

	resp, err := e.api.CreateFleet(ctx, buildCreateRequest(&model, req))
	if err != nil {
		logger.WithError(err).Error("create capacity reservation fleet failed")
		return Failed(OperationCreate, TranslateError(err).WithOperation(string(OperationCreate)), nil)
	}
	if resp == nil || resp.FleetID == "" {
		return Failed(OperationCreate, NewServiceInternalError("create returned no capacity reservation fleet id", nil).
			WithOperation(string(OperationCreate)), nil)
	}

	model.ID = resp.FleetID
	logger.WithResourceID(model.ID).Infof("fleet submitted in state %s", resp.State)

	return e.stabilize(ctx, req, model)
}
