// Package admission gates access to expensive generation calls.
//
// The Controller is the front door for generation requests. It enforces three
// guarantees:
//
//   - Per-user single-flight: at most one generation call is in flight per
//     user; concurrent requests from the same user are rejected with a
//     retry-later signal. Stale locks from crashed requests are cleared after
//     a staleness threshold.
//   - Fingerprint deduplication: identical in-flight requests (same owner,
//     resource, query, evidence size) share one upstream call; followers
//     receive the leader's result. If the leader fails, followers detach and
//     go through normal admission instead of inheriting the failure.
//   - Throttle-adaptive queueing: when the upstream model is observed
//     throttling, all requests are serialized through a FIFO drained by a
//     single background worker. Queue mode deactivates only after the queue
//     is empty and a cooldown window passes with no further throttle signal.
//
// All controller state is process-local; a multi-instance deployment would
// need the lock map and queue promoted to a shared store with the same
// contract.
package admission
