package engine

import (
	"context"
)

// readOnce serves the Read operation. It always terminates.
func (e *Engine) readOnce(ctx context.Context, req *Request) *ProgressSignal {
	model := req.desired()
	if err := requireID(&model); err != nil {
		return Failed(OperationRead, err, nil)
	}

	full, err := e.read(ctx, &model, OperationRead)
	if err != nil {
		return Failed(OperationRead, err, nil)
	}
	return Success(OperationRead, full)
}

// read describes the fleet and materializes its full model. Terminal
// fleets are absent and transitional ones cannot be read yet.
func (e *Engine) read(ctx context.Context, desired *ResourceModel, op Operation) (*ResourceModel, *Error) {
	fleet, err := e.describe(ctx, desired.ID, op)
	if err != nil {
		return nil, err
	}
	if err := checkLive(fleet); err != nil {
		return nil, err.WithOperation(string(op))
	}
	return modelFromFleet(fleet, desired), nil
}
