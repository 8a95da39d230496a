// Package config loads the crfleet configuration file and fleet model
// documents.
//
// Configuration is YAML. Values may reference the environment as ${VAR}
// or ${VAR:default}; placeholders are expanded before decoding. Fields
// missing from the file keep the values of Default, and the result is
// checked with struct validation tags.
//
//	log:
//	  level: debug
//	store:
//	  path: ${CRFLEET_DB:/var/lib/crfleet/state.db}
//	orchestrator:
//	  initial_interval: 5s
//	  max_interval: 1m
//	  timeout: 30m
//	tags:
//	  stack:
//	    stack: prod
//
// The section converters (Telemetry, StoreConfig, SimulatorConfig,
// OrchestratorConfig) produce the option structs of the packages they
// configure.
//
// Fleet models are YAML or JSON documents using the field names of
// engine.ResourceModel; LoadModel rejects unknown fields.
package config
