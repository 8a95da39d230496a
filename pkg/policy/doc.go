// Package policy checks fleet models against Rego policies before they
// are sent to the control plane.
//
// Every policy is a Rego module with a deny set. Each deny entry is either
// a message string or an object with "message" and an optional "severity"
// overriding the policy's default. Violations with error or critical
// severity block the operation; the rest are reported as warnings.
//
// Policies see an Input document:
//
//	{
//	  "operation": "create",
//	  "model": {"total_target_capacity": 4, "tag_specifications": [...]},
//	  "previous": {...},
//	  "stack_tags": {"stack": "prod"},
//	  "system_tags": {...},
//	  "required_tags": ["team"],
//	  "environment": "production"
//	}
//
// # Built-in Policies
//
//   - reserved-tag-prefix: tag keys may not start with aws:
//   - required-tags: created fleets carry every configured required tag
//   - capacity-shrink: warns when an update cuts capacity by more than half
//   - instance-type-limit: at most 50 instance type specifications
//
// Custom policies are loaded from .rego files (warning severity, named
// after the file) or .json definitions with explicit name and severity:
//
//	eng, err := policy.NewEngine(ctx, logger)
//	if err != nil {
//	    return err
//	}
//	if err := eng.LoadPolicies(ctx, []string{"/etc/crfleet/policies"}); err != nil {
//	    return err
//	}
//	result, err := eng.Evaluate(ctx, &policy.Input{Operation: engine.OperationCreate, Model: model})
//	if err != nil {
//	    return err
//	}
//	return result.Err()
package policy
