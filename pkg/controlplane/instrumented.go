package controlplane

import (
	"context"

	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// Remote call names used in spans and metric labels.
const (
	CallCreateFleet    = "CreateCapacityReservationFleet"
	CallModifyFleet    = "ModifyCapacityReservationFleet"
	CallCancelFleets   = "CancelCapacityReservationFleets"
	CallDescribeFleets = "DescribeCapacityReservationFleets"
)

// Instrumented records a span, latency and classified errors for every
// call made to a control plane.
type Instrumented struct {
	next engine.ControlPlane
	tel  *telemetry.Telemetry
}

var _ engine.ControlPlane = (*Instrumented)(nil)

// NewInstrumented wraps next with telemetry. A nil telemetry disables it.
func NewInstrumented(next engine.ControlPlane, tel *telemetry.Telemetry) *Instrumented {
	if tel == nil {
		tel = telemetry.Nop()
	}
	return &Instrumented{next: next, tel: tel}
}

func classify(err error) string {
	return string(engine.KindOf(engine.TranslateError(err)))
}

// CreateFleet creates the fleet inside a remote call span.
func (i *Instrumented) CreateFleet(ctx context.Context, req *engine.CreateFleetRequest) (*engine.CreateFleetResponse, error) {
	var resp *engine.CreateFleetResponse
	err := i.tel.RecordRemoteCall(ctx, CallCreateFleet, classify, func(ctx context.Context) error {
		var err error
		resp, err = i.next.CreateFleet(ctx, req)
		return err
	})
	return resp, err
}

// ModifyFleet modifies the fleet inside a remote call span.
func (i *Instrumented) ModifyFleet(ctx context.Context, req *engine.ModifyFleetRequest) (*engine.ModifyFleetResponse, error) {
	var resp *engine.ModifyFleetResponse
	err := i.tel.RecordRemoteCall(ctx, CallModifyFleet, classify, func(ctx context.Context) error {
		var err error
		resp, err = i.next.ModifyFleet(ctx, req)
		return err
	})
	return resp, err
}

// CancelFleets cancels the fleets inside a remote call span.
func (i *Instrumented) CancelFleets(ctx context.Context, req *engine.CancelFleetsRequest) (*engine.CancelFleetsResponse, error) {
	var resp *engine.CancelFleetsResponse
	err := i.tel.RecordRemoteCall(ctx, CallCancelFleets, classify, func(ctx context.Context) error {
		var err error
		resp, err = i.next.CancelFleets(ctx, req)
		return err
	})
	return resp, err
}

// DescribeFleets describes the fleets inside a remote call span.
func (i *Instrumented) DescribeFleets(ctx context.Context, req *engine.DescribeFleetsRequest) (*engine.DescribeFleetsResponse, error) {
	var resp *engine.DescribeFleetsResponse
	err := i.tel.RecordRemoteCall(ctx, CallDescribeFleets, classify, func(ctx context.Context) error {
		var err error
		resp, err = i.next.DescribeFleets(ctx, req)
		return err
	})
	return resp, err
}
