package engine

import (
	"encoding/json"
	"fmt"
)

// CallbackContext is the resumable state handed back to the orchestrator.
// It is a plain value: the engine keeps nothing between invocations except
// what travels here and in the resource model.
type CallbackContext struct {
	// Phase is where the suspended operation resumes.
	Phase Phase `json:"phase,omitempty"`

	// Attempts counts the stabilization checks performed so far.
	Attempts int `json:"attempts,omitempty"`

	// FleetID is the identifier bound by the mutation, if any.
	FleetID string `json:"fleet_id,omitempty"`
}

// Encode serializes the context for the orchestrator.
func (c CallbackContext) Encode() (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to encode callback context: %w", err)
	}
	return string(data), nil
}

// DecodeCallbackContext parses a context produced by Encode.
// The empty string decodes to the zero context of a fresh invocation.
func DecodeCallbackContext(s string) (CallbackContext, error) {
	var c CallbackContext
	if s == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return CallbackContext{}, fmt.Errorf("failed to decode callback context: %w", err)
	}
	if err := c.Phase.Validate(); err != nil {
		return CallbackContext{}, err
	}
	if c.Attempts < 0 {
		return CallbackContext{}, fmt.Errorf("invalid callback context: negative attempts %d", c.Attempts)
	}
	return c, nil
}

// resumesStabilization reports whether a previous tick already issued the mutation.
func (c *CallbackContext) resumesStabilization() bool {
	return c != nil && c.Phase == PhaseStabilize
}

// next returns the context for the following stabilization tick.
func (c *CallbackContext) next(fleetID string) *CallbackContext {
	attempts := 0
	if c != nil {
		attempts = c.Attempts
	}
	return &CallbackContext{
		Phase:    PhaseStabilize,
		Attempts: attempts + 1,
		FleetID:  fleetID,
	}
}
