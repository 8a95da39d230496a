package policy

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		reservedTagPrefixPolicy(),
		requiredTagsPolicy(),
		capacityShrinkPolicy(),
		instanceTypeLimitPolicy(),
	}
}

// reservedTagPrefixPolicy rejects tag keys the provider reserves.
func reservedTagPrefixPolicy() Policy {
	return Policy{
		Name:        "reserved-tag-prefix",
		Description: "Tag keys must not use the reserved aws: prefix",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package crfleet.policies.tags

import rego.v1

deny contains violation if {
	some spec in input.model.tag_specifications
	some tag in spec.tags
	startswith(lower(tag.key), "aws:")
	violation := {"message": sprintf("tag key '%s' uses the reserved aws: prefix", [tag.key])}
}

deny contains violation if {
	some key, _ in object.union(object.get(input, "stack_tags", {}), object.get(input, "system_tags", {}))
	startswith(lower(key), "aws:")
	violation := {"message": sprintf("configured tag key '%s' uses the reserved aws: prefix", [key])}
}
`,
	}
}

// requiredTagsPolicy enforces the configured required tag keys on create.
func requiredTagsPolicy() Policy {
	return Policy{
		Name:        "required-tags",
		Description: "Created fleets must carry every configured required tag",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package crfleet.policies.required_tags

import rego.v1

deny contains violation if {
	input.operation == "create"
	some required in input.required_tags
	not has_tag(required)
	violation := {"message": sprintf("fleet must carry tag '%s'", [required])}
}

has_tag(key) if {
	some spec in input.model.tag_specifications
	some tag in spec.tags
	tag.key == key
}

has_tag(key) if input.stack_tags[key]

has_tag(key) if input.system_tags[key]
`,
	}
}

// capacityShrinkPolicy warns about updates that release most of a fleet.
func capacityShrinkPolicy() Policy {
	return Policy{
		Name:        "capacity-shrink",
		Description: "Warns when an update cuts target capacity by more than half",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package crfleet.policies.capacity

import rego.v1

deny contains violation if {
	input.operation == "update"
	previous := input.previous.total_target_capacity
	desired := input.model.total_target_capacity
	desired * 2 < previous
	violation := {"message": sprintf("target capacity drops from %v to %v", [previous, desired])}
}
`,
	}
}

// instanceTypeLimitPolicy mirrors the provider's limit on instance types.
func instanceTypeLimitPolicy() Policy {
	return Policy{
		Name:        "instance-type-limit",
		Description: "A fleet may reserve at most 50 instance type specifications",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package crfleet.policies.instance_types

import rego.v1

deny contains violation if {
	n := count(object.get(input.model, "instance_type_specifications", []))
	n > 50
	violation := {
		"message": sprintf("fleet lists %d instance types, the limit is 50", [n]),
		"severity": "critical",
	}
}
`,
	}
}
