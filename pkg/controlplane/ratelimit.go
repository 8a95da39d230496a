package controlplane

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/openfroyo/crfleet/pkg/engine"
)

// DefaultRequestsPerSecond is the client-side call budget when none is set.
const DefaultRequestsPerSecond = 10.0

// RateLimited spaces out calls to a control plane with a token bucket.
type RateLimited struct {
	next    engine.ControlPlane
	limiter *rate.Limiter
}

var _ engine.ControlPlane = (*RateLimited)(nil)

// NewRateLimited wraps next with a limiter of rps calls per second.
// A burst below one defaults to the per-second rate.
func NewRateLimited(next engine.ControlPlane, rps float64, burst int) *RateLimited {
	if rps <= 0 {
		rps = DefaultRequestsPerSecond
	}
	if burst < 1 {
		burst = max(int(rps), 1)
	}

	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// CreateFleet waits for the limiter, then creates the fleet.
func (r *RateLimited) CreateFleet(ctx context.Context, req *engine.CreateFleetRequest) (*engine.CreateFleetResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.CreateFleet(ctx, req)
}

// ModifyFleet waits for the limiter, then modifies the fleet.
func (r *RateLimited) ModifyFleet(ctx context.Context, req *engine.ModifyFleetRequest) (*engine.ModifyFleetResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ModifyFleet(ctx, req)
}

// CancelFleets waits for the limiter, then cancels the fleets.
func (r *RateLimited) CancelFleets(ctx context.Context, req *engine.CancelFleetsRequest) (*engine.CancelFleetsResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.CancelFleets(ctx, req)
}

// DescribeFleets waits for the limiter, then describes the fleets.
func (r *RateLimited) DescribeFleets(ctx context.Context, req *engine.DescribeFleetsRequest) (*engine.DescribeFleetsResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.DescribeFleets(ctx, req)
}
