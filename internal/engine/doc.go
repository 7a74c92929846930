// package engine implements the job synchronization engine.
//
// The engine reconciles an in-memory job cache against two update channels:
// push events over supervised websocket connections and pull snapshots via
// de-duplicated REST fetches. User commands run with an optimistic local
// status transition and roll back on failure.
//
// All cache and queue mutation happens on one sync goroutine fed by an
// internal dispatch channel, so merges are never concurrent with each other
// and callers never observe a half-applied update. Concurrency exists only at
// the boundary: connection I/O, snapshot fetches, command round-trips and
// timers run as independent goroutines that dispatch their results back onto
// the sync goroutine.
package engine
