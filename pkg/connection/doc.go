// Package connection owns the live backend handle and keeps it healthy.
//
// A Manager publishes exactly one current handle. Callers must always
// dereference it through Current or run work through Do; a reconnect swaps
// the handle atomically and a cached reference would keep talking to the
// torn-down one.
//
// Failure escalation: every call made through Do reports into a shared
// HealthRecord. The call that observes the configured number of consecutive
// failures (two by default) triggers one Reconnect and, when it succeeds,
// retries its operation exactly once. A call never reconnects or retries
// more than once. Calls made outside Do report through Report; they update
// the record but never reconnect.
//
// Staleness: EnsureFresh (and DoCritical) check the backend when nothing
// succeeded for the quiet window (two minutes by default) and reconnect
// when the check fails.
//
// Reconnect stops the old handle's refresh loop, snapshots its session,
// builds a new handle, restores the snapshot, publishes the new handle,
// closes the old one and then verifies it. Handles must finish session
// rotations in flight before Close returns, so a late rotation is carried
// over. A failed verification is reported but the new handle
// stays published.
package connection
