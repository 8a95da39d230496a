// Package controlplane provides implementations of engine.ControlPlane.
//
// Simulator keeps fleets in the SQLite store and moves them through their
// lifecycle as they are observed through DescribeFleets, so the engine can
// be driven end to end without a cloud account. RateLimited and Instrumented
// are decorators that add a client-side call budget and telemetry to any
// control plane:
//
//	sim, _ := controlplane.NewSimulator(store, controlplane.DefaultSimulatorConfig(), tel)
//	api := controlplane.NewInstrumented(controlplane.NewRateLimited(sim, 10, 10), tel)
//	eng := engine.New(api)
package controlplane
