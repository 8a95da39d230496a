package engine

import (
	"sort"
)

// DefaultListPageSize is the Describe page size used by List.
const DefaultListPageSize = 100

// mergeTagSpecifications builds the tag groups sent with a create request.
// Stack tags and system tags form a single fleet group placed first, each
// source sorted by key; user groups follow in their given order.
// An empty result is nil so that no tag specifications are sent.
func mergeTagSpecifications(stackTags, systemTags map[string]string, user []TagSpecification) []TagSpecification {
	var merged []TagSpecification

	envTags := append(sortedTags(stackTags), sortedTags(systemTags)...)
	if len(envTags) > 0 {
		merged = append(merged, TagSpecification{
			ResourceType: FleetTagResourceType,
			Tags:         envTags,
		})
	}

	for _, spec := range user {
		merged = append(merged, TagSpecification{
			ResourceType: spec.ResourceType,
			Tags:         append([]Tag(nil), spec.Tags...),
		})
	}

	if len(merged) == 0 {
		return nil
	}
	return merged
}

func sortedTags(tags map[string]string) []Tag {
	if len(tags) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, Tag{Key: k, Value: tags[k]})
	}
	return out
}

func buildCreateRequest(model *ResourceModel, req *Request) *CreateFleetRequest {
	return &CreateFleetRequest{
		AllocationStrategy:         model.AllocationStrategy,
		ClientToken:                req.ClientToken,
		EndDate:                    model.EndDate,
		InstanceMatchCriteria:      model.InstanceMatchCriteria,
		InstanceTypeSpecifications: append([]InstanceTypeSpecification(nil), model.InstanceTypeSpecifications...),
		TagSpecifications:          mergeTagSpecifications(req.StackTags, req.SystemTags, model.TagSpecifications),
		Tenancy:                    model.Tenancy,
		TotalTargetCapacity:        model.TotalTargetCapacity,
	}
}

// buildModifyRequest forwards RemoveEndDate whenever it is present. The end
// date is only sent alongside NoRemoveEndDate. The target capacity is sent
// when provided. Callers reject models that carry both flags.
func buildModifyRequest(model *ResourceModel) *ModifyFleetRequest {
	req := &ModifyFleetRequest{
		FleetID:             model.ID,
		TotalTargetCapacity: model.TotalTargetCapacity,
	}
	switch {
	case model.RemoveEndDate != nil:
		removeEndDate := *model.RemoveEndDate
		req.RemoveEndDate = &removeEndDate
	case model.NoRemoveEndDate != nil && model.EndDate != nil:
		req.EndDate = model.EndDate
	}
	return req
}

func buildDescribeRequest(id string) *DescribeFleetsRequest {
	return &DescribeFleetsRequest{FleetIDs: []string{id}}
}

func buildListRequest(nextToken string) *DescribeFleetsRequest {
	return &DescribeFleetsRequest{
		NextToken:  nextToken,
		MaxResults: DefaultListPageSize,
	}
}

func buildCancelRequest(id string) *CancelFleetsRequest {
	return &CancelFleetsRequest{FleetIDs: []string{id}}
}

// modelFromFleet materializes the full model of a described fleet.
// The caller's tag specifications win over the remote tags, since the
// provider reports a flat tag set without resource types.
func modelFromFleet(fleet *RemoteFleet, desired *ResourceModel) *ResourceModel {
	capacity := fleet.TotalTargetCapacity
	model := &ResourceModel{
		ID:                    fleet.ID,
		TotalTargetCapacity:   &capacity,
		AllocationStrategy:    fleet.AllocationStrategy,
		InstanceMatchCriteria: fleet.InstanceMatchCriteria,
		Tenancy:               fleet.Tenancy,
		EndDate:               fleet.EndDate,
	}

	if len(fleet.InstanceTypeSpecifications) > 0 {
		model.InstanceTypeSpecifications = append([]InstanceTypeSpecification(nil), fleet.InstanceTypeSpecifications...)
	}

	switch {
	case desired != nil && desired.TagSpecifications != nil:
		model.TagSpecifications = desired.TagSpecifications
	case len(fleet.Tags) > 0:
		model.TagSpecifications = []TagSpecification{{
			ResourceType: FleetTagResourceType,
			Tags:         append([]Tag(nil), fleet.Tags...),
		}}
	}

	return model
}

// listedModels keeps the listable fleets as identifier-only models.
func listedModels(fleets []RemoteFleet) []ResourceModel {
	models := make([]ResourceModel, 0, len(fleets))
	for i := range fleets {
		if !IsListed(fleets[i].State) {
			continue
		}
		models = append(models, ResourceModel{ID: fleets[i].ID})
	}
	return models
}
