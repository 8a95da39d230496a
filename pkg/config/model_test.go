package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openfroyo/crfleet/pkg/engine"
)

func TestParseModel(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		wantErr   string
		checkFunc func(*testing.T, *engine.ResourceModel)
	}{
		{
			name: "yaml",
			content: `
total_target_capacity: 4
allocation_strategy: prioritized
tenancy: default
end_date: 2030-01-02T03:04:05Z
instance_type_specifications:
  - instance_type: m5.large
    instance_platform: Linux/UNIX
    availability_zone: us-east-1a
    priority: 1
    weight: 2
tag_specifications:
  - resource_type: capacity-reservation-fleet
    tags:
      - key: team
        value: fleet
`,
			checkFunc: func(t *testing.T, m *engine.ResourceModel) {
				if m.TotalTargetCapacity == nil || *m.TotalTargetCapacity != 4 {
					t.Errorf("unexpected capacity: %v", m.TotalTargetCapacity)
				}
				if m.AllocationStrategy != "prioritized" {
					t.Errorf("unexpected strategy: %s", m.AllocationStrategy)
				}
				want := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
				if m.EndDate == nil || !m.EndDate.Equal(want) {
					t.Errorf("unexpected end date: %v", m.EndDate)
				}
				if len(m.InstanceTypeSpecifications) != 1 || *m.InstanceTypeSpecifications[0].Weight != 2 {
					t.Errorf("unexpected instance types: %+v", m.InstanceTypeSpecifications)
				}
				if len(m.TagSpecifications) != 1 || m.TagSpecifications[0].Tags[0].Key != "team" {
					t.Errorf("unexpected tags: %+v", m.TagSpecifications)
				}
			},
		},
		{
			name:    "json",
			content: `{"capacity_reservation_fleet_id": "crf-0123456789abcdef0", "total_target_capacity": 2, "remove_end_date": true}`,
			checkFunc: func(t *testing.T, m *engine.ResourceModel) {
				if m.ID != "crf-0123456789abcdef0" {
					t.Errorf("unexpected id: %s", m.ID)
				}
				if m.RemoveEndDate == nil || !*m.RemoveEndDate {
					t.Errorf("expected remove_end_date true")
				}
			},
		},
		{
			name:    "unknown field",
			content: "total_capacity: 4\n",
			wantErr: "failed to parse model",
		},
		{
			name:    "negative capacity",
			content: "total_target_capacity: -1\n",
			wantErr: "TotalTargetCapacity",
		},
		{
			name: "zone and zone id",
			content: `
instance_type_specifications:
  - instance_type: m5.large
    availability_zone: us-east-1a
    availability_zone_id: use1-az1
`,
			wantErr: "AvailabilityZone",
		},
		{
			name: "tag without key",
			content: `
tag_specifications:
  - tags:
      - value: orphan
`,
			wantErr: "Tags[0].Key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model, err := ParseModel([]byte(tt.content))
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.checkFunc(t, model)
		})
	}
}

func TestLoadModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	if err := os.WriteFile(path, []byte("total_target_capacity: 1\n"), 0o644); err != nil {
		t.Fatalf("failed to write model: %v", err)
	}

	model, err := LoadModel(path)
	if err != nil {
		t.Fatalf("LoadModel failed: %v", err)
	}
	if *model.TotalTargetCapacity != 1 {
		t.Errorf("unexpected capacity: %d", *model.TotalTargetCapacity)
	}

	if _, err := LoadModel(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing model")
	}
}
