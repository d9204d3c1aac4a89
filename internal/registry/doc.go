// Package registry holds the authoritative in-memory view of every task in
// a run.
//
// A task enters with [Registry.Register] in the Queued status and is then
// mutated only through registry operations: status transitions, role
// outputs, completion or failure, and artifact lists. Callers always
// receive copies.
//
// Each mutation bumps [Snapshot.Version] and is handed to a [Persister] on
// a background goroutine. Write failures are logged and published as
// snapshot.persist_failed events but never surface to the caller; the
// in-memory state stays authoritative for the life of the process.
//
// [Registry.ImportSnapshots] seeds the registry from persisted state at
// start-up without overwriting tasks that are already live.
package registry
