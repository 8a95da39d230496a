package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openfroyo/crfleet/pkg/engine"
	"github.com/openfroyo/crfleet/pkg/stores"
	"github.com/openfroyo/crfleet/pkg/telemetry"
)

// Error codes reported by the simulator in addition to the fleet codes
// the engine translates.
const (
	ErrCodeInvalidParameterValue       = "InvalidParameterValue"
	ErrCodeMissingParameter            = "MissingParameter"
	ErrCodeInvalidParameterCombination = "InvalidParameterCombination"
	ErrCodeRequestLimitExceeded        = "RequestLimitExceeded"
	ErrCodeInternalError               = "InternalError"
	ErrCodeInvalidNextToken            = "InvalidNextToken"
)

// DefaultMaxResults is the Describe page size when the caller sets none.
const DefaultMaxResults = 100

var fleetIDPattern = regexp.MustCompile(`^crf-[0-9a-f]{17}$`)

// SimulatorConfig controls how quickly simulated fleets converge.
type SimulatorConfig struct {
	// SubmitObservations is the number of Describe calls after which a
	// submitted fleet becomes active or partially fulfilled.
	SubmitObservations int

	// ModifyObservations is the number of Describe calls a modification takes.
	ModifyObservations int

	// CancelObservations is the number of Describe calls a cancellation takes.
	CancelObservations int

	// FulfillmentRatio is the share of target capacity the simulator can
	// reserve. Below 1 fleets settle as partially fulfilled.
	FulfillmentRatio float64

	// FailAboveCapacity fails submitted fleets whose target exceeds it.
	// Zero disables the check.
	FailAboveCapacity int

	// ThrottleEvery rejects every Nth call as throttled. Zero disables it.
	ThrottleEvery int

	// Now returns the simulated wall clock. Defaults to time.Now.
	Now func() time.Time
}

// DefaultSimulatorConfig returns a simulator that converges after two
// observations and fulfils every fleet.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		SubmitObservations: 2,
		ModifyObservations: 1,
		CancelObservations: 1,
		FulfillmentRatio:   1,
	}
}

// Simulator is an in-process capacity reservation control plane backed by
// the fleet table. It is safe for concurrent use.
type Simulator struct {
	// mu serializes read-modify-write cycles on the fleet table.
	mu sync.Mutex

	store  stores.Store
	config SimulatorConfig
	tel    *telemetry.Telemetry
	logger *telemetry.Logger

	calls int
}

var _ engine.ControlPlane = (*Simulator)(nil)

// NewSimulator creates a simulator over an initialized, migrated store.
func NewSimulator(store stores.Store, config SimulatorConfig, tel *telemetry.Telemetry) (*Simulator, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if config.FulfillmentRatio < 0 || config.FulfillmentRatio > 1 {
		return nil, fmt.Errorf("fulfillment ratio must be between 0 and 1, got %v", config.FulfillmentRatio)
	}
	if config.SubmitObservations < 0 || config.ModifyObservations < 0 || config.CancelObservations < 0 {
		return nil, fmt.Errorf("observation counts must not be negative")
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if tel == nil {
		tel = telemetry.Nop()
	}

	return &Simulator{
		store:  store,
		config: config,
		tel:    tel,
		logger: tel.Logger.NewComponentLogger("simulator"),
	}, nil
}

// CreateFleet submits a new fleet in the submitted state.
func (s *Simulator) CreateFleet(ctx context.Context, req *engine.CreateFleetRequest) (*engine.CreateFleetResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.throttle(); err != nil {
		return nil, err
	}
	if err := validateCreate(req, s.config.Now()); err != nil {
		return nil, err
	}

	if req.ClientToken != "" {
		existing, err := s.store.GetFleetByClientToken(ctx, req.ClientToken)
		if err == nil {
			s.logger.WithResourceID(existing.ID).Debug("client token reused, returning existing fleet")
			return &engine.CreateFleetResponse{
				FleetID:    existing.ID,
				State:      engine.FleetState(existing.State),
				CreateTime: existing.CreatedAt,
			}, nil
		}
		if !errors.Is(err, stores.ErrNotFound) {
			return nil, internalError(err)
		}
	}

	instanceTypes, err := json.Marshal(req.InstanceTypeSpecifications)
	if err != nil {
		return nil, internalError(err)
	}
	tags, err := json.Marshal(fleetTags(req.TagSpecifications))
	if err != nil {
		return nil, internalError(err)
	}

	fleet := &stores.Fleet{
		ID:                    newFleetID(),
		State:                 string(engine.FleetStateSubmitted),
		TotalTargetCapacity:   *req.TotalTargetCapacity,
		AllocationStrategy:    string(orDefault(req.AllocationStrategy, engine.AllocationStrategyPrioritized)),
		InstanceMatchCriteria: string(orDefault(req.InstanceMatchCriteria, engine.InstanceMatchCriteriaOpen)),
		Tenancy:               string(orDefault(req.Tenancy, engine.TenancyDefault)),
		EndDate:               req.EndDate,
		InstanceTypes:         string(instanceTypes),
		Tags:                  string(tags),
		CreatedAt:             s.config.Now().UTC(),
	}
	if req.ClientToken != "" {
		token := req.ClientToken
		fleet.ClientToken = &token
	}

	if err := s.store.CreateFleet(ctx, fleet); err != nil {
		return nil, internalError(err)
	}

	s.logger.WithResourceID(fleet.ID).Infof("fleet submitted with target capacity %d", fleet.TotalTargetCapacity)
	s.transitioned(ctx, fleet.ID, "", fleet.State)

	return &engine.CreateFleetResponse{
		FleetID:    fleet.ID,
		State:      engine.FleetStateSubmitted,
		CreateTime: fleet.CreatedAt,
	}, nil
}

// ModifyFleet changes the capacity or end date of a settled fleet.
func (s *Simulator) ModifyFleet(ctx context.Context, req *engine.ModifyFleetRequest) (*engine.ModifyFleetResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.throttle(); err != nil {
		return nil, err
	}
	if req == nil {
		return nil, badRequest(ErrCodeMissingParameter, "request is required")
	}
	if req.EndDate != nil && req.RemoveEndDate != nil && *req.RemoveEndDate {
		return nil, badRequest(ErrCodeInvalidParameterCombination, "EndDate and RemoveEndDate cannot both be specified")
	}
	if req.TotalTargetCapacity != nil && *req.TotalTargetCapacity < 0 {
		return nil, badRequest(ErrCodeInvalidParameterValue, "TotalTargetCapacity must not be negative")
	}

	fleet, err := s.lookup(ctx, req.FleetID)
	if err != nil {
		return nil, err
	}

	state := engine.FleetState(fleet.State)
	if state != engine.FleetStateActive && state != engine.FleetStatePartiallyFulfilled {
		return nil, &engine.APIError{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  engine.ErrCodeInvalidStateTransition,
			Message:    fmt.Sprintf("capacity reservation fleet %s cannot be modified in state %s", fleet.ID, state),
			RequestID:  newRequestID(),
		}
	}

	if req.TotalTargetCapacity != nil {
		fleet.TotalTargetCapacity = *req.TotalTargetCapacity
	}
	switch {
	case req.RemoveEndDate != nil && *req.RemoveEndDate:
		fleet.EndDate = nil
	case req.EndDate != nil:
		end := *req.EndDate
		fleet.EndDate = &end
	}

	old := fleet.State
	fleet.State = string(engine.FleetStateModifying)
	fleet.Observations = 0
	if err := s.store.UpdateFleet(ctx, fleet); err != nil {
		return nil, internalError(err)
	}

	s.transitioned(ctx, fleet.ID, old, fleet.State)
	return &engine.ModifyFleetResponse{Return: true}, nil
}

// CancelFleets moves each settled fleet to cancelling. Fleets that cannot
// be cancelled are reported per entry rather than failing the call.
func (s *Simulator) CancelFleets(ctx context.Context, req *engine.CancelFleetsRequest) (*engine.CancelFleetsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.throttle(); err != nil {
		return nil, err
	}
	if req == nil || len(req.FleetIDs) == 0 {
		return nil, badRequest(ErrCodeMissingParameter, "at least one capacity reservation fleet id is required")
	}

	resp := &engine.CancelFleetsResponse{}
	for _, id := range req.FleetIDs {
		fleet, err := s.lookup(ctx, id)
		if err != nil {
			var apiErr *engine.APIError
			if !errors.As(err, &apiErr) || apiErr.StatusCode >= http.StatusInternalServerError {
				return nil, err
			}
			resp.Failed = append(resp.Failed, engine.CancelFleetFailure{
				FleetID:   id,
				ErrorCode: apiErr.ErrorCode,
				Message:   apiErr.Message,
			})
			continue
		}

		state := engine.FleetState(fleet.State)
		switch {
		case state == engine.FleetStateCancelling, state.IsTerminal():
			resp.Successful = append(resp.Successful, engine.CancelFleetSuccess{
				FleetID:       id,
				CurrentState:  state,
				PreviousState: state,
			})
		case state.IsTransitional():
			resp.Failed = append(resp.Failed, engine.CancelFleetFailure{
				FleetID:   id,
				ErrorCode: engine.ErrCodeInvalidStateTransition,
				Message:   fmt.Sprintf("capacity reservation fleet %s cannot be cancelled in state %s", id, state),
			})
		default:
			fleet.State = string(engine.FleetStateCancelling)
			fleet.Observations = 0
			if err := s.store.UpdateFleet(ctx, fleet); err != nil {
				return nil, internalError(err)
			}
			s.transitioned(ctx, id, string(state), fleet.State)
			resp.Successful = append(resp.Successful, engine.CancelFleetSuccess{
				FleetID:       id,
				CurrentState:  engine.FleetStateCancelling,
				PreviousState: state,
			})
		}
	}

	return resp, nil
}

// DescribeFleets returns the requested fleets, or one page of all fleets.
// Every returned fleet counts as one observation and may advance its state.
func (s *Simulator) DescribeFleets(ctx context.Context, req *engine.DescribeFleetsRequest) (*engine.DescribeFleetsResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.throttle(); err != nil {
		return nil, err
	}
	if req == nil {
		req = &engine.DescribeFleetsRequest{}
	}

	resp := &engine.DescribeFleetsResponse{RequestID: newRequestID()}

	if len(req.FleetIDs) > 0 {
		for _, id := range req.FleetIDs {
			fleet, err := s.lookup(ctx, id)
			if err != nil {
				return nil, err
			}
			remote, err := s.observe(ctx, fleet)
			if err != nil {
				return nil, err
			}
			resp.Fleets = append(resp.Fleets, remote)
		}
		return resp, nil
	}

	limit := req.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	offset := 0
	if req.NextToken != "" {
		n, err := strconv.Atoi(req.NextToken)
		if err != nil || n < 0 {
			return nil, badRequest(ErrCodeInvalidNextToken, "the pagination token is invalid")
		}
		offset = n
	}

	// one extra row tells us whether another page exists
	fleets, err := s.store.ListFleets(ctx, limit+1, offset)
	if err != nil {
		return nil, internalError(err)
	}
	if len(fleets) > limit {
		fleets = fleets[:limit]
		resp.NextToken = strconv.Itoa(offset + limit)
	}

	resp.Fleets = make([]engine.RemoteFleet, 0, len(fleets))
	for _, fleet := range fleets {
		remote, err := s.observe(ctx, fleet)
		if err != nil {
			return nil, err
		}
		resp.Fleets = append(resp.Fleets, remote)
	}
	return resp, nil
}

// observe counts one observation of the fleet, advances it when its
// transition is due and returns the resulting view.
func (s *Simulator) observe(ctx context.Context, fleet *stores.Fleet) (engine.RemoteFleet, error) {
	old := fleet.State
	fleet.Observations++
	s.advance(fleet)

	if fleet.State != old {
		fleet.Observations = 0
	}
	if err := s.store.UpdateFleet(ctx, fleet); err != nil {
		return engine.RemoteFleet{}, internalError(err)
	}
	if fleet.State != old {
		s.transitioned(ctx, fleet.ID, old, fleet.State)
	}

	return toRemote(fleet)
}

func (s *Simulator) advance(fleet *stores.Fleet) {
	switch engine.FleetState(fleet.State) {
	case engine.FleetStateSubmitted:
		if fleet.Observations < s.config.SubmitObservations {
			return
		}
		if s.config.FailAboveCapacity > 0 && fleet.TotalTargetCapacity > s.config.FailAboveCapacity {
			fleet.State = string(engine.FleetStateFailed)
			fleet.TotalFulfilledCapacity = 0
			return
		}
		s.settle(fleet)
	case engine.FleetStateModifying:
		if fleet.Observations >= s.config.ModifyObservations {
			s.settle(fleet)
		}
	case engine.FleetStateCancelling:
		if fleet.Observations >= s.config.CancelObservations {
			fleet.State = string(engine.FleetStateCancelled)
			fleet.TotalFulfilledCapacity = 0
		}
	case engine.FleetStateActive, engine.FleetStatePartiallyFulfilled:
		if fleet.EndDate != nil && !s.config.Now().Before(*fleet.EndDate) {
			fleet.State = string(engine.FleetStateExpired)
			fleet.TotalFulfilledCapacity = 0
		}
	}
}

// settle reserves as much capacity as the fulfillment ratio allows.
func (s *Simulator) settle(fleet *stores.Fleet) {
	fulfilled := math.Floor(float64(fleet.TotalTargetCapacity) * s.config.FulfillmentRatio)
	fleet.TotalFulfilledCapacity = fulfilled
	if fulfilled >= float64(fleet.TotalTargetCapacity) {
		fleet.State = string(engine.FleetStateActive)
	} else {
		fleet.State = string(engine.FleetStatePartiallyFulfilled)
	}
}

// lookup loads a fleet, reporting malformed and unknown identifiers the way
// the real control plane does.
func (s *Simulator) lookup(ctx context.Context, id string) (*stores.Fleet, error) {
	if !fleetIDPattern.MatchString(id) {
		return nil, &engine.APIError{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  engine.ErrCodeFleetIDMalformed,
			Message:    fmt.Sprintf("the capacity reservation fleet id '%s' is malformed", id),
			RequestID:  newRequestID(),
		}
	}

	fleet, err := s.store.GetFleet(ctx, id)
	if errors.Is(err, stores.ErrNotFound) {
		return nil, &engine.APIError{
			StatusCode: http.StatusBadRequest,
			ErrorCode:  engine.ErrCodeFleetIDNotFound,
			Message:    fmt.Sprintf("the capacity reservation fleet id '%s' does not exist", id),
			RequestID:  newRequestID(),
		}
	}
	if err != nil {
		return nil, internalError(err)
	}
	return fleet, nil
}

// throttle counts the call and rejects it when fault injection says so.
func (s *Simulator) throttle() error {
	s.calls++
	if s.config.ThrottleEvery > 0 && s.calls%s.config.ThrottleEvery == 0 {
		return &engine.APIError{
			StatusCode: http.StatusServiceUnavailable,
			ErrorCode:  ErrCodeRequestLimitExceeded,
			Throttled:  true,
			Message:    "request limit exceeded",
			RequestID:  newRequestID(),
		}
	}
	return nil
}

// transitioned publishes a state change and refreshes the fleet gauges.
func (s *Simulator) transitioned(ctx context.Context, id, from, to string) {
	s.logger.WithResourceID(id).Debugf("fleet moved from %q to %q", from, to)
	if err := s.tel.Events.PublishFleetStateChanged(id, from, to); err != nil {
		s.logger.WithError(err).Warn("failed to publish fleet state change")
	}

	counts, err := s.store.CountFleetsByState(ctx)
	if err != nil {
		s.logger.WithError(err).Warn("failed to count fleets")
		return
	}
	for _, state := range engine.AllFleetStates {
		s.tel.Metrics.SetFleetCount(string(state), float64(counts[string(state)]))
	}
}

func validateCreate(req *engine.CreateFleetRequest, now time.Time) error {
	if req == nil {
		return badRequest(ErrCodeMissingParameter, "request is required")
	}
	if len(req.InstanceTypeSpecifications) == 0 {
		return badRequest(ErrCodeMissingParameter, "at least one instance type specification is required")
	}
	if req.TotalTargetCapacity == nil {
		return badRequest(ErrCodeMissingParameter, "TotalTargetCapacity is required")
	}
	if *req.TotalTargetCapacity < 0 {
		return badRequest(ErrCodeInvalidParameterValue, "TotalTargetCapacity must not be negative")
	}
	if req.AllocationStrategy != "" && req.AllocationStrategy != engine.AllocationStrategyPrioritized {
		return badRequest(ErrCodeInvalidParameterValue, fmt.Sprintf("unsupported allocation strategy %q", req.AllocationStrategy))
	}
	if req.InstanceMatchCriteria != "" && req.InstanceMatchCriteria != engine.InstanceMatchCriteriaOpen {
		return badRequest(ErrCodeInvalidParameterValue, fmt.Sprintf("unsupported instance match criteria %q", req.InstanceMatchCriteria))
	}
	if req.Tenancy != "" && req.Tenancy != engine.TenancyDefault {
		return badRequest(ErrCodeInvalidParameterValue, fmt.Sprintf("unsupported tenancy %q", req.Tenancy))
	}
	if req.EndDate != nil && !req.EndDate.After(now) {
		return badRequest(ErrCodeInvalidParameterValue, "EndDate must be in the future")
	}
	for _, spec := range req.InstanceTypeSpecifications {
		if spec.InstanceType == "" {
			return badRequest(ErrCodeMissingParameter, "InstanceType is required")
		}
		if spec.AvailabilityZone != "" && spec.AvailabilityZoneID != "" {
			return badRequest(ErrCodeInvalidParameterCombination, "AvailabilityZone and AvailabilityZoneId cannot both be specified")
		}
	}
	return nil
}

// fleetTags flattens the tag groups that target the fleet itself.
func fleetTags(specs []engine.TagSpecification) []engine.Tag {
	tags := []engine.Tag{}
	for _, spec := range specs {
		if spec.ResourceType != "" && spec.ResourceType != engine.FleetTagResourceType {
			continue
		}
		tags = append(tags, spec.Tags...)
	}
	return tags
}

func toRemote(fleet *stores.Fleet) (engine.RemoteFleet, error) {
	remote := engine.RemoteFleet{
		ID:                     fleet.ID,
		State:                  engine.FleetState(fleet.State),
		TotalTargetCapacity:    fleet.TotalTargetCapacity,
		TotalFulfilledCapacity: fleet.TotalFulfilledCapacity,
		AllocationStrategy:     engine.AllocationStrategy(fleet.AllocationStrategy),
		InstanceMatchCriteria:  engine.InstanceMatchCriteria(fleet.InstanceMatchCriteria),
		Tenancy:                engine.Tenancy(fleet.Tenancy),
		EndDate:                fleet.EndDate,
		CreateTime:             fleet.CreatedAt,
	}
	if err := json.Unmarshal([]byte(fleet.InstanceTypes), &remote.InstanceTypeSpecifications); err != nil {
		return engine.RemoteFleet{}, internalError(fmt.Errorf("failed to decode instance types of %s: %w", fleet.ID, err))
	}
	if err := json.Unmarshal([]byte(fleet.Tags), &remote.Tags); err != nil {
		return engine.RemoteFleet{}, internalError(fmt.Errorf("failed to decode tags of %s: %w", fleet.ID, err))
	}
	if len(remote.Tags) == 0 {
		remote.Tags = nil
	}
	return remote, nil
}

// newFleetID returns "crf-" followed by 17 hex characters.
func newFleetID() string {
	return "crf-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:17]
}

func newRequestID() string {
	return uuid.New().String()
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

func badRequest(code, message string) *engine.APIError {
	return &engine.APIError{
		StatusCode: http.StatusBadRequest,
		ErrorCode:  code,
		Message:    message,
		RequestID:  newRequestID(),
	}
}

func internalError(err error) *engine.APIError {
	return &engine.APIError{
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  ErrCodeInternalError,
		Message:    err.Error(),
		RequestID:  newRequestID(),
	}
}
