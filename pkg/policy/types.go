package policy

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/openfroyo/crfleet/pkg/engine"
)

// ErrDenied is wrapped by errors for models that a blocking policy rejected.
var ErrDenied = errors.New("denied by policy")

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for warnings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for errors that block the operation.
	SeverityError Severity = "error"

	// SeverityCritical is for violations that block the operation and page someone.
	SeverityCritical Severity = "critical"
)

// Blocks reports whether a violation of this severity rejects the model.
func (s Severity) Blocks() bool {
	return s == SeverityError || s == SeverityCritical
}

// Policy is a Rego module whose deny set lists violations.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Source is the file the policy was loaded from. Empty for built-ins.
	Source string `json:"source,omitempty"`
}

// Violation is one entry of a policy's deny set.
type Violation struct {
	Policy   string   `json:"policy"`
	Fleet    string   `json:"fleet,omitempty"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Input is the document policies see as input.
type Input struct {
	// Operation is create or update.
	Operation engine.Operation `json:"operation"`

	// Model is the desired fleet model.
	Model *engine.ResourceModel `json:"model"`

	// Previous is the fleet's current model, on update.
	Previous *engine.ResourceModel `json:"previous,omitempty"`

	// StackTags and SystemTags are merged into the fleet's tags on create.
	StackTags  map[string]string `json:"stack_tags,omitempty"`
	SystemTags map[string]string `json:"system_tags,omitempty"`

	// RequiredTags lists tag keys every created fleet must carry.
	RequiredTags []string `json:"required_tags,omitempty"`

	// Environment is the deployment environment.
	Environment string `json:"environment,omitempty"`
}

// Result is the outcome of evaluating every enabled policy.
type Result struct {
	// Allowed is false when any violation blocks.
	Allowed bool `json:"allowed"`

	// Violations are the blocking violations.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings are the non-blocking violations.
	Warnings []Violation `json:"warnings,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Err returns nil for an allowed result, or an error wrapping ErrDenied
// that lists every blocking violation.
func (r *Result) Err() error {
	if r.Allowed {
		return nil
	}
	msgs := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		msgs = append(msgs, fmt.Sprintf("%s: %s", v.Policy, v.Message))
	}
	return fmt.Errorf("%w: %s", ErrDenied, strings.Join(msgs, "; "))
}
