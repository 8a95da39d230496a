package policy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/openfroyo/crfleet/pkg/engine"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := NewEngine(context.Background(), zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	return eng
}

func intPtr(v int) *int { return &v }

func taggedModel(capacity int, tags ...engine.Tag) *engine.ResourceModel {
	return &engine.ResourceModel{
		ID:                  "crf-0123456789abcdef0",
		TotalTargetCapacity: intPtr(capacity),
		InstanceTypeSpecifications: []engine.InstanceTypeSpecification{
			{InstanceType: "m5.large", InstancePlatform: "Linux/UNIX"},
		},
		TagSpecifications: []engine.TagSpecification{
			{ResourceType: engine.FleetTagResourceType, Tags: tags},
		},
	}
}

func TestNewEngine_Builtins(t *testing.T) {
	eng := newTestEngine(t)

	expected := []string{"capacity-shrink", "instance-type-limit", "required-tags", "reserved-tag-prefix"}
	policies := eng.ListPolicies()
	if len(policies) != len(expected) {
		t.Fatalf("expected %d built-in policies, got %d", len(expected), len(policies))
	}
	for i, name := range expected {
		if policies[i].Name != name {
			t.Errorf("policy %d: expected %s, got %s", i, name, policies[i].Name)
		}
	}
}

func TestEvaluate_Builtins(t *testing.T) {
	eng := newTestEngine(t)

	manyTypes := taggedModel(1)
	for i := 0; i < 51; i++ {
		manyTypes.InstanceTypeSpecifications = append(manyTypes.InstanceTypeSpecifications,
			engine.InstanceTypeSpecification{InstanceType: "c5.large"})
	}

	tests := []struct {
		name          string
		input         *Input
		expectAllowed bool
		violations    []string
		warnings      []string
	}{
		{
			name: "clean create",
			input: &Input{
				Operation: engine.OperationCreate,
				Model:     taggedModel(2, engine.Tag{Key: "team", Value: "capacity"}),
			},
			expectAllowed: true,
		},
		{
			name: "reserved tag prefix on model",
			input: &Input{
				Operation: engine.OperationCreate,
				Model:     taggedModel(2, engine.Tag{Key: "AWS:owner", Value: "x"}),
			},
			violations: []string{"reserved-tag-prefix"},
		},
		{
			name: "reserved tag prefix in configured tags",
			input: &Input{
				Operation: engine.OperationCreate,
				Model:     taggedModel(2),
				StackTags: map[string]string{"aws:stack": "prod"},
			},
			violations: []string{"reserved-tag-prefix"},
		},
		{
			name: "required tag missing",
			input: &Input{
				Operation:    engine.OperationCreate,
				Model:        taggedModel(2, engine.Tag{Key: "team", Value: "capacity"}),
				RequiredTags: []string{"team", "cost-center"},
			},
			violations: []string{"required-tags"},
		},
		{
			name: "required tag satisfied by system tags",
			input: &Input{
				Operation:    engine.OperationCreate,
				Model:        taggedModel(2),
				SystemTags:   map[string]string{"cost-center": "42"},
				RequiredTags: []string{"cost-center"},
			},
			expectAllowed: true,
		},
		{
			name: "required tags ignored on update",
			input: &Input{
				Operation:    engine.OperationUpdate,
				Model:        taggedModel(2),
				Previous:     taggedModel(2),
				RequiredTags: []string{"team"},
			},
			expectAllowed: true,
		},
		{
			name: "large shrink warns",
			input: &Input{
				Operation: engine.OperationUpdate,
				Model:     taggedModel(1),
				Previous:  taggedModel(10),
			},
			expectAllowed: true,
			warnings:      []string{"capacity-shrink"},
		},
		{
			name: "small shrink is fine",
			input: &Input{
				Operation: engine.OperationUpdate,
				Model:     taggedModel(6),
				Previous:  taggedModel(10),
			},
			expectAllowed: true,
		},
		{
			name: "too many instance types",
			input: &Input{
				Operation: engine.OperationCreate,
				Model:     manyTypes,
			},
			violations: []string{"instance-type-limit"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := eng.Evaluate(context.Background(), tt.input)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}
			if result.Allowed != tt.expectAllowed {
				t.Errorf("expected allowed=%v, got %v (%+v)", tt.expectAllowed, result.Allowed, result.Violations)
			}
			assertPolicies(t, "violations", result.Violations, tt.violations)
			assertPolicies(t, "warnings", result.Warnings, tt.warnings)
			if len(result.EvaluatedPolicies) != 4 {
				t.Errorf("expected 4 evaluated policies, got %v", result.EvaluatedPolicies)
			}
		})
	}
}

func assertPolicies(t *testing.T, what string, got []Violation, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %s %v, got %+v", what, want, got)
	}
	for i := range want {
		if got[i].Policy != want[i] {
			t.Errorf("%s %d: expected %s, got %s", what, i, want[i], got[i].Policy)
		}
		if got[i].Message == "" {
			t.Errorf("%s %d: empty message", what, i)
		}
	}
}

func TestEvaluate_SeverityOverride(t *testing.T) {
	eng := newTestEngine(t)

	manyTypes := taggedModel(1)
	for i := 0; i < 60; i++ {
		manyTypes.InstanceTypeSpecifications = append(manyTypes.InstanceTypeSpecifications,
			engine.InstanceTypeSpecification{InstanceType: "c5.large"})
	}

	result, err := eng.Evaluate(context.Background(), &Input{Operation: engine.OperationCreate, Model: manyTypes})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Violations) != 1 || result.Violations[0].Severity != SeverityCritical {
		t.Fatalf("expected one critical violation, got %+v", result.Violations)
	}
	if result.Violations[0].Fleet != "crf-0123456789abcdef0" {
		t.Errorf("expected fleet id on violation, got %q", result.Violations[0].Fleet)
	}
}

func TestResult_Err(t *testing.T) {
	allowed := &Result{Allowed: true}
	if err := allowed.Err(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	denied := &Result{Violations: []Violation{
		{Policy: "a", Message: "first"},
		{Policy: "b", Message: "second"},
	}}
	err := denied.Err()
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
	if !strings.Contains(err.Error(), "a: first; b: second") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng := newTestEngine(t)
	input := &Input{
		Operation: engine.OperationCreate,
		Model:     taggedModel(2, engine.Tag{Key: "aws:owner", Value: "x"}),
	}

	if err := eng.DisablePolicy("reserved-tag-prefix"); err != nil {
		t.Fatalf("DisablePolicy failed: %v", err)
	}
	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("disabled policy should not block: %+v", result.Violations)
	}
	if len(result.EvaluatedPolicies) != 3 {
		t.Errorf("expected 3 evaluated policies, got %v", result.EvaluatedPolicies)
	}

	if err := eng.EnablePolicy("reserved-tag-prefix"); err != nil {
		t.Fatalf("EnablePolicy failed: %v", err)
	}
	result, err = eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Allowed {
		t.Error("re-enabled policy should block")
	}

	if err := eng.DisablePolicy("missing"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestLoadPolicies_Custom(t *testing.T) {
	dir := t.TempDir()
	custom := `# Fleets in production need an end date
package crfleet.custom.end_date

import rego.v1

deny contains msg if {
	input.environment == "production"
	not input.model.end_date
	msg := "production fleets must set an end date"
}
`
	if err := os.WriteFile(filepath.Join(dir, "end-date.rego"), []byte(custom), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	eng := newTestEngine(t)
	if err := eng.LoadPolicies(context.Background(), []string{dir}); err != nil {
		t.Fatalf("LoadPolicies failed: %v", err)
	}

	input := &Input{Operation: engine.OperationCreate, Model: taggedModel(1), Environment: "production"}
	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	// .rego files default to warning severity
	if !result.Allowed {
		t.Errorf("warning policy should not block: %+v", result.Violations)
	}
	assertPolicies(t, "warnings", result.Warnings, []string{"end-date"})
	if result.Warnings[0].Message != "production fleets must set an end date" {
		t.Errorf("unexpected message: %s", result.Warnings[0].Message)
	}

	input.Environment = "development"
	result, err = eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings outside production, got %+v", result.Warnings)
	}
}

func TestLoadPolicies_InvalidRego(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.rego")
	if err := os.WriteFile(path, []byte("package broken\n\ndeny contains msg if {"), 0o644); err != nil {
		t.Fatalf("failed to write policy: %v", err)
	}

	eng := newTestEngine(t)
	if err := eng.LoadPolicies(context.Background(), []string{path}); err == nil {
		t.Fatal("expected compile error")
	}
}
