package engine

import (
	"time"
)

// FleetTagResourceType is the tag resource type that targets the fleet itself.
const FleetTagResourceType = "capacity-reservation-fleet"

// AllocationStrategy controls how capacity is spread across instance types.
type AllocationStrategy string

// AllocationStrategyPrioritized is the only strategy the control plane supports.
const AllocationStrategyPrioritized AllocationStrategy = "prioritized"

// InstanceMatchCriteria controls which instances may consume the reservation.
type InstanceMatchCriteria string

// InstanceMatchCriteriaOpen lets any matching instance consume the reservation.
const InstanceMatchCriteriaOpen InstanceMatchCriteria = "open"

// Tenancy is the tenancy of the reserved capacity.
type Tenancy string

// TenancyDefault reserves shared-hardware capacity.
const TenancyDefault Tenancy = "default"

// ResourceModel is the desired or observed representation of a fleet.
type ResourceModel struct {
	// ID is the provider-issued fleet identifier. Empty until creation.
	ID string `json:"capacity_reservation_fleet_id,omitempty" yaml:"capacity_reservation_fleet_id,omitempty"`

	// TotalTargetCapacity is the number of capacity units to reserve.
	TotalTargetCapacity *int `json:"total_target_capacity,omitempty" yaml:"total_target_capacity,omitempty" validate:"omitempty,min=0"`

	// AllocationStrategy controls how capacity is allocated across instance types.
	AllocationStrategy AllocationStrategy `json:"allocation_strategy,omitempty" yaml:"allocation_strategy,omitempty"`

	// InstanceMatchCriteria controls which instances can use the reservations.
	InstanceMatchCriteria InstanceMatchCriteria `json:"instance_match_criteria,omitempty" yaml:"instance_match_criteria,omitempty"`

	// Tenancy is the tenancy of the reserved capacity.
	Tenancy Tenancy `json:"tenancy,omitempty" yaml:"tenancy,omitempty"`

	// EndDate is when the fleet expires. Nil means it never expires.
	EndDate *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`

	// RemoveEndDate asks an update to clear the end date.
	RemoveEndDate *bool `json:"remove_end_date,omitempty" yaml:"remove_end_date,omitempty"`

	// NoRemoveEndDate asks an update to keep (or set) the end date.
	NoRemoveEndDate *bool `json:"no_remove_end_date,omitempty" yaml:"no_remove_end_date,omitempty"`

	// InstanceTypeSpecifications is the ordered list of instance types to reserve.
	InstanceTypeSpecifications []InstanceTypeSpecification `json:"instance_type_specifications,omitempty" yaml:"instance_type_specifications,omitempty" validate:"dive"`

	// TagSpecifications are the tag groups applied on creation.
	TagSpecifications []TagSpecification `json:"tag_specifications,omitempty" yaml:"tag_specifications,omitempty" validate:"dive"`
}

// InstanceTypeSpecification describes one instance type in the fleet.
type InstanceTypeSpecification struct {
	InstanceType       string   `json:"instance_type,omitempty" yaml:"instance_type,omitempty"`
	InstancePlatform   string   `json:"instance_platform,omitempty" yaml:"instance_platform,omitempty"`
	AvailabilityZone   string   `json:"availability_zone,omitempty" yaml:"availability_zone,omitempty" validate:"excluded_with=AvailabilityZoneID"`
	AvailabilityZoneID string   `json:"availability_zone_id,omitempty" yaml:"availability_zone_id,omitempty"`
	EbsOptimized       *bool    `json:"ebs_optimized,omitempty" yaml:"ebs_optimized,omitempty"`
	Priority           *int     `json:"priority,omitempty" yaml:"priority,omitempty" validate:"omitempty,min=0"`
	Weight             *float64 `json:"weight,omitempty" yaml:"weight,omitempty" validate:"omitempty,gt=0"`
}

// TagSpecification is a group of tags for one target resource type.
type TagSpecification struct {
	ResourceType string `json:"resource_type,omitempty" yaml:"resource_type,omitempty"`
	Tags         []Tag  `json:"tags,omitempty" yaml:"tags,omitempty" validate:"dive"`
}

// Tag is a key/value pair.
type Tag struct {
	Key   string `json:"key" yaml:"key" validate:"required"`
	Value string `json:"value" yaml:"value"`
}

// WithID returns a shallow copy of the model with the identifier bound.
func (m ResourceModel) WithID(id string) ResourceModel {
	m.ID = id
	return m
}

// RemoteFleet is the control plane's view of one fleet.
type RemoteFleet struct {
	// ID is the fleet identifier.
	ID string `json:"capacity_reservation_fleet_id"`

	// State is the lifecycle state.
	State FleetState `json:"state"`

	// TotalTargetCapacity is the requested capacity.
	TotalTargetCapacity int `json:"total_target_capacity"`

	// TotalFulfilledCapacity is the capacity actually reserved.
	TotalFulfilledCapacity float64 `json:"total_fulfilled_capacity"`

	// AllocationStrategy is the allocation strategy in effect.
	AllocationStrategy AllocationStrategy `json:"allocation_strategy,omitempty"`

	// InstanceMatchCriteria is the match criteria in effect.
	InstanceMatchCriteria InstanceMatchCriteria `json:"instance_match_criteria,omitempty"`

	// Tenancy is the tenancy in effect.
	Tenancy Tenancy `json:"tenancy,omitempty"`

	// EndDate is when the fleet expires, if ever.
	EndDate *time.Time `json:"end_date,omitempty"`

	// CreateTime is when the fleet was submitted.
	CreateTime time.Time `json:"create_time"`

	// InstanceTypeSpecifications are the instance types in the fleet.
	InstanceTypeSpecifications []InstanceTypeSpecification `json:"instance_type_specifications,omitempty"`

	// Tags are the tags on the fleet.
	Tags []Tag `json:"tags,omitempty"`
}
