package engine

import (
	"context"

	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// Poller performs one stabilization check per call. It never sleeps;
// scheduling the next check is the orchestrator's job.
type Poller struct {
	api ControlPlane
}

// NewPoller creates a poller over the given control plane.
func NewPoller(api ControlPlane) *Poller {
	return &Poller{api: api}
}

// Check issues a single Describe for the fleet and reports whether it
// satisfies the convergence criteria of op.
//
// An empty Describe result is a provider inconsistency and yields a
// ServiceInternalError. For Create and Update a terminal fleet yields
// NotFound; Delete keeps reporting not converged until the fleet is
// cancelled.
func (p *Poller) Check(ctx context.Context, id string, op Operation) (bool, *RemoteFleet, *Error) {
	logger := telemetry.FromContext(ctx).
		WithResourceID(id).
		WithField("operation", string(op))

	resp, err := p.api.DescribeFleets(ctx, buildDescribeRequest(id))
	if err != nil {
		logger.WithError(err).Error("stabilization check failed")
		if IsUnauthorized(err) {
			logger.Warn("caller is missing permission to describe capacity reservation fleets")
		}
		return false, nil, TranslateError(err).
			WithResource(id).
			WithOperation(string(op))
	}

	if resp == nil || len(resp.Fleets) == 0 {
		logger.Error("describe returned no fleet during stabilization")
		return false, nil, NewServiceInternalError("capacity reservation fleet could not be observed after mutation", nil).
			WithResource(id).
			WithOperation(string(op))
	}

	fleet := &resp.Fleets[0]
	if op != OperationDelete && Classify(fleet.State) == ClassTerminalFailure {
		logger.Errorf("fleet reached terminal state %s during stabilization", fleet.State)
		return false, fleet, NewNotFoundError("capacity reservation fleet is not in an active state", nil).
			WithResource(id).
			WithOperation(string(op)).
			WithDetail("state", string(fleet.State))
	}

	converged := Converged(op, fleet.State)
	logger.Debugf("fleet is in %s state, stabilized: %t", fleet.State, converged)
	return converged, fleet, nil
}
