package engine

import (
	"context"
	"fmt"

	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// Request is one engine invocation.
type Request struct {
	// Operation is the lifecycle operation to run.
	Operation Operation `json:"operation"`

	// DesiredModel is the caller's desired state.
	DesiredModel *ResourceModel `json:"desired_model,omitempty"`

	// PreviousModel is the last known state, on Update.
	PreviousModel *ResourceModel `json:"previous_model,omitempty"`

	// CallbackContext resumes a suspended operation. Nil on the first tick.
	CallbackContext *CallbackContext `json:"callback_context,omitempty"`

	// NextToken is the List continuation token.
	NextToken string `json:"next_token,omitempty"`

	// StackTags are environment-level tags applied on Create.
	StackTags map[string]string `json:"stack_tags,omitempty"`

	// SystemTags are system-level tags applied on Create.
	SystemTags map[string]string `json:"system_tags,omitempty"`

	// ClientToken makes Create idempotent at the control plane.
	ClientToken string `json:"client_token,omitempty"`
}

// desired returns a copy of the desired model, so handlers can bind the
// identifier without touching the caller's value.
func (r *Request) desired() ResourceModel {
	if r.DesiredModel == nil {
		return ResourceModel{}
	}
	return *r.DesiredModel
}

// Engine runs the resource lifecycle against a control plane.
//
// Execute is a function of the request alone: the engine holds no state
// between invocations, so a single Engine may serve any number of
// independent callers.
type Engine struct {
	api    ControlPlane
	poller *Poller
}

// New creates an engine over the given control plane.
func New(api ControlPlane) *Engine {
	return &Engine{
		api:    api,
		poller: NewPoller(api),
	}
}

// Execute runs one tick of the requested operation and returns its
// progress signal. Read and List never report IN_PROGRESS.
func (e *Engine) Execute(ctx context.Context, req *Request) *ProgressSignal {
	if req == nil {
		return Failed("", NewInvalidInputError("request is required", nil), nil)
	}
	if err := req.Operation.Validate(); err != nil {
		return Failed(req.Operation, NewInvalidInputError("unsupported operation", err), nil)
	}

	logger := telemetry.FromContext(ctx).WithField("operation", string(req.Operation))
	if req.DesiredModel != nil && req.DesiredModel.ID != "" {
		logger = logger.WithResourceID(req.DesiredModel.ID)
	}
	ctx = logger.WithContext(ctx)

	if req.CallbackContext != nil {
		logger.Debugf("resuming from phase %s after %d checks", req.CallbackContext.Phase, req.CallbackContext.Attempts)
	}

	var signal *ProgressSignal
	switch req.Operation {
	case OperationCreate:
		signal = e.create(ctx, req)
	case OperationRead:
		signal = e.readOnce(ctx, req)
	case OperationUpdate:
		signal = e.update(ctx, req)
	case OperationDelete:
		signal = e.delete(ctx, req)
	case OperationList:
		signal = e.list(ctx, req)
	}

	switch signal.Status {
	case StatusFailed:
		logger.WithField("error_kind", string(signal.ErrorKind)).Warn(signal.Message)
	default:
		logger.Debugf("invocation finished with status %s", signal.Status)
	}
	return signal
}

// requireID rejects models without a bound identifier before any remote call.
func requireID(model *ResourceModel) *Error {
	if model.ID == "" {
		return NewInvalidInputError("capacity_reservation_fleet_id is required", nil)
	}
	return nil
}

// describe fetches a single fleet. An empty result is an inconsistency.
func (e *Engine) describe(ctx context.Context, id string, op Operation) (*RemoteFleet, *Error) {
	resp, err := e.api.DescribeFleets(ctx, buildDescribeRequest(id))
	if err != nil {
		return nil, TranslateError(err).WithResource(id).WithOperation(string(op))
	}
	if resp == nil || len(resp.Fleets) == 0 {
		return nil, NewServiceInternalError(
			fmt.Sprintf("describe returned no capacity reservation fleet for %s", id), nil).
			WithResource(id).
			WithOperation(string(op))
	}
	telemetry.FromContext(ctx).Debugf("described fleet in state %s (request %s)", resp.Fleets[0].State, resp.RequestID)
	return &resp.Fleets[0], nil
}

// stabilize performs the single convergence check of a tick. Failures carry
// the resumable context so the orchestrator can retry the tick.
func (e *Engine) stabilize(ctx context.Context, req *Request, model ResourceModel) *ProgressSignal {
	op := req.Operation
	next := req.CallbackContext.next(model.ID)

	converged, _, perr := e.poller.Check(ctx, model.ID, op)
	if perr != nil {
		return Failed(op, perr, next)
	}
	if !converged {
		return InProgress(op, &model, next)
	}

	telemetry.FromContext(ctx).Infof("fleet stabilized after %d checks", next.Attempts)

	if op == OperationDelete {
		return Success(op, nil)
	}

	full, rerr := e.read(ctx, &model, op)
	if rerr != nil {
		return Failed(op, rerr, next)
	}
	return Success(op, full)
}
