package engine

import (
	"context"
	"sync"
)

// describeResult is one scripted Describe outcome.
type describeResult struct {
	resp *DescribeFleetsResponse
	err  error
}

// mockControlPlane is a scripted control plane. Describe results are served
// in order and the last one repeats once the script runs out.
type mockControlPlane struct {
	mu sync.Mutex

	createResp *CreateFleetResponse
	createErr  error
	modifyResp *ModifyFleetResponse
	modifyErr  error
	cancelResp *CancelFleetsResponse
	cancelErr  error
	describes  []describeResult

	createCalls   []*CreateFleetRequest
	modifyCalls   []*ModifyFleetRequest
	cancelCalls   []*CancelFleetsRequest
	describeCalls []*DescribeFleetsRequest
}

func newMockControlPlane() *mockControlPlane {
	return &mockControlPlane{}
}

func (m *mockControlPlane) CreateFleet(ctx context.Context, req *CreateFleetRequest) (*CreateFleetResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls = append(m.createCalls, req)
	return m.createResp, m.createErr
}

func (m *mockControlPlane) ModifyFleet(ctx context.Context, req *ModifyFleetRequest) (*ModifyFleetResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modifyCalls = append(m.modifyCalls, req)
	return m.modifyResp, m.modifyErr
}

func (m *mockControlPlane) CancelFleets(ctx context.Context, req *CancelFleetsRequest) (*CancelFleetsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls = append(m.cancelCalls, req)
	return m.cancelResp, m.cancelErr
}

func (m *mockControlPlane) DescribeFleets(ctx context.Context, req *DescribeFleetsRequest) (*DescribeFleetsResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeCalls = append(m.describeCalls, req)
	if len(m.describes) == 0 {
		return &DescribeFleetsResponse{}, nil
	}
	next := m.describes[0]
	if len(m.describes) > 1 {
		m.describes = m.describes[1:]
	}
	return next.resp, next.err
}

// thenDescribe appends fleets in the given states to the Describe script.
func (m *mockControlPlane) thenDescribe(id string, states ...FleetState) *mockControlPlane {
	for _, state := range states {
		m.describes = append(m.describes, describeResult{
			resp: &DescribeFleetsResponse{Fleets: []RemoteFleet{testFleet(id, state)}},
		})
	}
	return m
}

// thenDescribeEmpty appends an empty Describe result.
func (m *mockControlPlane) thenDescribeEmpty() *mockControlPlane {
	m.describes = append(m.describes, describeResult{resp: &DescribeFleetsResponse{}})
	return m
}

// thenDescribeError appends a failing Describe.
func (m *mockControlPlane) thenDescribeError(err error) *mockControlPlane {
	m.describes = append(m.describes, describeResult{err: err})
	return m
}

func (m *mockControlPlane) calls() (create, modify, cancel, describe int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.createCalls), len(m.modifyCalls), len(m.cancelCalls), len(m.describeCalls)
}

func testFleet(id string, state FleetState) RemoteFleet {
	return RemoteFleet{
		ID:                     id,
		State:                  state,
		TotalTargetCapacity:    4,
		TotalFulfilledCapacity: 4,
		AllocationStrategy:     AllocationStrategyPrioritized,
		InstanceMatchCriteria:  InstanceMatchCriteriaOpen,
		Tenancy:                TenancyDefault,
		InstanceTypeSpecifications: []InstanceTypeSpecification{
			{InstanceType: "m5.large", InstancePlatform: "Linux/UNIX", AvailabilityZone: "us-east-1a"},
		},
		Tags: []Tag{{Key: "team", Value: "capacity"}},
	}
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
