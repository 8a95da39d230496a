package engine

import (
	"reflect"
	"testing"
	"time"
)

func TestMergeTagSpecifications(t *testing.T) {
	user := []TagSpecification{
		{ResourceType: FleetTagResourceType, Tags: []Tag{{Key: "owner", Value: "me"}}},
	}

	got := mergeTagSpecifications(
		map[string]string{"stack": "prod", "app": "web"},
		map[string]string{"sys:stack-id": "s-1"},
		user,
	)

	want := []TagSpecification{
		{
			ResourceType: FleetTagResourceType,
			Tags: []Tag{
				{Key: "app", Value: "web"},
				{Key: "stack", Value: "prod"},
				{Key: "sys:stack-id", Value: "s-1"},
			},
		},
		{ResourceType: FleetTagResourceType, Tags: []Tag{{Key: "owner", Value: "me"}}},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergeTagSpecifications() = %+v, want %+v", got, want)
	}
}

func TestMergeTagSpecifications_Empty(t *testing.T) {
	if got := mergeTagSpecifications(nil, map[string]string{}, nil); got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestMergeTagSpecifications_OnlyUser(t *testing.T) {
	user := []TagSpecification{{ResourceType: FleetTagResourceType, Tags: []Tag{{Key: "k", Value: "v"}}}}
	got := mergeTagSpecifications(nil, nil, user)
	if len(got) != 1 || got[0].Tags[0].Key != "k" {
		t.Errorf("unexpected merge result %+v", got)
	}

	got[0].Tags[0].Key = "changed"
	if user[0].Tags[0].Key != "k" {
		t.Error("merge must not alias the caller's tags")
	}
}

func TestBuildModifyRequest(t *testing.T) {
	end := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		model      ResourceModel
		wantRemove *bool
		wantEnd    bool
	}{
		{name: "capacity only", model: ResourceModel{ID: "crf-1", TotalTargetCapacity: intPtr(8)}},
		{name: "end date without flag", model: ResourceModel{ID: "crf-1", EndDate: &end}},
		{name: "remove end date", model: ResourceModel{ID: "crf-1", EndDate: &end, RemoveEndDate: boolPtr(true)}, wantRemove: boolPtr(true)},
		{name: "remove end date false", model: ResourceModel{ID: "crf-1", EndDate: &end, RemoveEndDate: boolPtr(false)}, wantRemove: boolPtr(false)},
		{name: "keep end date", model: ResourceModel{ID: "crf-1", EndDate: &end, NoRemoveEndDate: boolPtr(true)}, wantEnd: true},
		{name: "no remove end date false", model: ResourceModel{ID: "crf-1", EndDate: &end, NoRemoveEndDate: boolPtr(false)}, wantEnd: true},
		{name: "no remove end date without date", model: ResourceModel{ID: "crf-1", NoRemoveEndDate: boolPtr(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := buildModifyRequest(&tt.model)
			if req.FleetID != "crf-1" {
				t.Errorf("FleetID = %s", req.FleetID)
			}
			switch {
			case tt.wantRemove == nil && req.RemoveEndDate != nil:
				t.Errorf("RemoveEndDate = %v, want unset", *req.RemoveEndDate)
			case tt.wantRemove != nil && req.RemoveEndDate == nil:
				t.Errorf("RemoveEndDate unset, want %v", *tt.wantRemove)
			case tt.wantRemove != nil && *req.RemoveEndDate != *tt.wantRemove:
				t.Errorf("RemoveEndDate = %v, want %v", *req.RemoveEndDate, *tt.wantRemove)
			}
			if got := req.EndDate != nil; got != tt.wantEnd {
				t.Errorf("EndDate set = %v, want %v", got, tt.wantEnd)
			}
			if tt.model.TotalTargetCapacity != nil && *req.TotalTargetCapacity != *tt.model.TotalTargetCapacity {
				t.Errorf("TotalTargetCapacity = %d", *req.TotalTargetCapacity)
			}
		})
	}
}

func TestBuildCreateRequest(t *testing.T) {
	model := &ResourceModel{
		TotalTargetCapacity: intPtr(4),
		AllocationStrategy:  AllocationStrategyPrioritized,
		Tenancy:             TenancyDefault,
		InstanceTypeSpecifications: []InstanceTypeSpecification{
			{InstanceType: "m5.large", Priority: intPtr(1)},
		},
	}
	req := buildCreateRequest(model, &Request{ClientToken: "tok-1", StackTags: map[string]string{"env": "dev"}})

	if req.ClientToken != "tok-1" {
		t.Errorf("ClientToken = %s", req.ClientToken)
	}
	if *req.TotalTargetCapacity != 4 {
		t.Errorf("TotalTargetCapacity = %d", *req.TotalTargetCapacity)
	}
	if len(req.TagSpecifications) != 1 || req.TagSpecifications[0].ResourceType != FleetTagResourceType {
		t.Errorf("TagSpecifications = %+v", req.TagSpecifications)
	}
	if len(req.InstanceTypeSpecifications) != 1 {
		t.Errorf("InstanceTypeSpecifications = %+v", req.InstanceTypeSpecifications)
	}
}

func TestModelFromFleet_Tags(t *testing.T) {
	fleet := testFleet("crf-1", FleetStateActive)

	desired := &ResourceModel{
		ID:                "crf-1",
		TagSpecifications: []TagSpecification{{ResourceType: FleetTagResourceType, Tags: []Tag{{Key: "mine", Value: "1"}}}},
	}
	got := modelFromFleet(&fleet, desired)
	if got.TagSpecifications[0].Tags[0].Key != "mine" {
		t.Errorf("caller tag specifications should win, got %+v", got.TagSpecifications)
	}

	got = modelFromFleet(&fleet, &ResourceModel{ID: "crf-1"})
	if len(got.TagSpecifications) != 1 || got.TagSpecifications[0].Tags[0].Key != "team" {
		t.Errorf("remote tags expected, got %+v", got.TagSpecifications)
	}

	fleet.Tags = nil
	got = modelFromFleet(&fleet, nil)
	if got.TagSpecifications != nil {
		t.Errorf("expected no tag specifications, got %+v", got.TagSpecifications)
	}
	if got.ID != "crf-1" || *got.TotalTargetCapacity != 4 || got.Tenancy != TenancyDefault {
		t.Errorf("unexpected model %+v", got)
	}
}

func TestListedModels(t *testing.T) {
	fleets := []RemoteFleet{
		testFleet("crf-active", FleetStateActive),
		testFleet("crf-partial", FleetStatePartiallyFulfilled),
		testFleet("crf-failed", FleetStateFailed),
		testFleet("crf-cancelled", FleetStateCancelled),
		testFleet("crf-submitted", FleetStateSubmitted),
		testFleet("crf-expired", FleetStateExpired),
	}

	got := listedModels(fleets)
	want := []ResourceModel{{ID: "crf-active"}, {ID: "crf-partial"}, {ID: "crf-failed"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("listedModels() = %+v, want %+v", got, want)
	}
}
