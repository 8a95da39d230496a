// Package orchestrator drives the reconciliation engine to completion.
//
// The engine performs one tick per call and never waits. A Driver calls it
// repeatedly, sleeping between ticks with exponential backoff, until the
// returned signal is terminal or the run times out. Failed ticks whose
// error kind is retryable and that carry a callback context are re-run a
// bounded number of times.
//
// Every run is journaled in the store: one invocation row per run and one
// tick row per engine call. A run interrupted by a crash or cancellation
// can be picked up again with Resume.
package orchestrator
