package engine

import (
	"context"
	"fmt"
	"time"
)

// Remote error codes understood by the error translator.
const (
	ErrCodeFleetIDNotFound        = "InvalidCapacityReservationFleetId.NotFound"
	ErrCodeFleetIDMalformed       = "InvalidCapacityReservationFleetId.Malformed"
	ErrCodeInvalidStateTransition = "InvalidCapacityReservationFleetStateTransition"
	ErrCodeUnauthorizedOperation  = "UnauthorizedOperation"
)

// ControlPlane is the remote API that owns capacity-reservation fleets.
// Every method either returns a typed response or fails; remote failures
// should be reported as *APIError so the engine can classify them.
type ControlPlane interface {
	// CreateFleet submits a new fleet. The fleet converges asynchronously.
	CreateFleet(ctx context.Context, req *CreateFleetRequest) (*CreateFleetResponse, error)

	// ModifyFleet changes capacity or end date of an existing fleet.
	ModifyFleet(ctx context.Context, req *ModifyFleetRequest) (*ModifyFleetResponse, error)

	// CancelFleets cancels one or more fleets.
	CancelFleets(ctx context.Context, req *CancelFleetsRequest) (*CancelFleetsResponse, error)

	// DescribeFleets returns the listed fleets, or one page of all fleets
	// when no identifiers are given.
	DescribeFleets(ctx context.Context, req *DescribeFleetsRequest) (*DescribeFleetsResponse, error)
}

// APIError is a failure reported by the control plane.
type APIError struct {
	// StatusCode is the HTTP-like status of the failed call, zero if unknown.
	StatusCode int `json:"status_code,omitempty"`

	// ErrorCode is the provider error code, empty if unknown.
	ErrorCode string `json:"error_code,omitempty"`

	// Throttled is set when the call was rejected by rate limiting.
	Throttled bool `json:"throttled,omitempty"`

	// Message is the provider's error message.
	Message string `json:"message"`

	// RequestID identifies the remote request, when the provider returns one.
	RequestID string `json:"request_id,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	switch {
	case e.ErrorCode != "" && e.StatusCode != 0:
		return fmt.Sprintf("%s (status %d): %s", e.ErrorCode, e.StatusCode, e.Message)
	case e.ErrorCode != "":
		return fmt.Sprintf("%s: %s", e.ErrorCode, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	default:
		return e.Message
	}
}

// CreateFleetRequest contains the parameters for CreateFleet.
type CreateFleetRequest struct {
	AllocationStrategy         AllocationStrategy          `json:"allocation_strategy,omitempty"`
	ClientToken                string                      `json:"client_token,omitempty"`
	EndDate                    *time.Time                  `json:"end_date,omitempty"`
	InstanceMatchCriteria      InstanceMatchCriteria       `json:"instance_match_criteria,omitempty"`
	InstanceTypeSpecifications []InstanceTypeSpecification `json:"instance_type_specifications"`
	TagSpecifications          []TagSpecification          `json:"tag_specifications,omitempty"`
	Tenancy                    Tenancy                     `json:"tenancy,omitempty"`
	TotalTargetCapacity        *int                        `json:"total_target_capacity,omitempty"`
}

// CreateFleetResponse contains the result of CreateFleet.
type CreateFleetResponse struct {
	FleetID    string     `json:"capacity_reservation_fleet_id"`
	State      FleetState `json:"state"`
	CreateTime time.Time  `json:"create_time"`
}

// ModifyFleetRequest contains the parameters for ModifyFleet.
type ModifyFleetRequest struct {
	FleetID             string     `json:"capacity_reservation_fleet_id"`
	TotalTargetCapacity *int       `json:"total_target_capacity,omitempty"`
	EndDate             *time.Time `json:"end_date,omitempty"`
	RemoveEndDate       *bool      `json:"remove_end_date,omitempty"`
}

// ModifyFleetResponse contains the result of ModifyFleet.
// The provider reports failure through Return rather than an error.
type ModifyFleetResponse struct {
	Return bool `json:"return"`
}

// CancelFleetsRequest contains the parameters for CancelFleets.
type CancelFleetsRequest struct {
	FleetIDs []string `json:"capacity_reservation_fleet_ids"`
}

// CancelFleetsResponse contains the result of CancelFleets.
type CancelFleetsResponse struct {
	Successful []CancelFleetSuccess `json:"successful_fleet_cancellations,omitempty"`
	Failed     []CancelFleetFailure `json:"failed_fleet_cancellations,omitempty"`
}

// CancelFleetSuccess is one fleet the provider accepted for cancellation.
type CancelFleetSuccess struct {
	FleetID       string     `json:"capacity_reservation_fleet_id"`
	CurrentState  FleetState `json:"current_fleet_state"`
	PreviousState FleetState `json:"previous_fleet_state"`
}

// CancelFleetFailure is one fleet the provider refused to cancel.
type CancelFleetFailure struct {
	FleetID   string `json:"capacity_reservation_fleet_id"`
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
}

// DescribeFleetsRequest contains the parameters for DescribeFleets.
type DescribeFleetsRequest struct {
	FleetIDs   []string `json:"capacity_reservation_fleet_ids,omitempty"`
	NextToken  string   `json:"next_token,omitempty"`
	MaxResults int      `json:"max_results,omitempty"`
}

// DescribeFleetsResponse contains the result of DescribeFleets.
type DescribeFleetsResponse struct {
	Fleets    []RemoteFleet `json:"capacity_reservation_fleets"`
	NextToken string        `json:"next_token,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}
