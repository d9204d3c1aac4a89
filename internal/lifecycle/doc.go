// Package lifecycle defines the states a task moves through on its way
// from assignment to completion, and the pure transition function that
// advances it.
//
// # States
//
// A task follows a single linear path:
//
//	Queued → Planning → Building → Verifying → Reviewing → Done
//
// Any non-terminal state moves to Blocked when its step fails. Done and
// Blocked are terminal: nothing advances from them.
//
// # Usage
//
//	next := lifecycle.Next(lifecycle.StatusBuilding, true) // StatusVerifying
//	next = lifecycle.Next(next, false)                      // StatusBlocked
//
// Calling [Next] with a terminal or unknown status is a programming error
// and panics.
package lifecycle
