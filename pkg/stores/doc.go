// Package stores provides the SQLite persistence layer for crfleet.
//
// A single database holds three tables:
//
//   - fleets: the state of the simulated capacity reservation control plane
//   - invocations: one row per orchestrated run of a lifecycle operation
//   - ticks: one row per engine invocation within a run
//
// The schema is embedded and applied with golang-migrate. File databases run
// in WAL mode; ":memory:" databases are pinned to one connection.
package stores
