// Package consensus aggregates reviewer votes into a single approval
// decision per task.
//
// Each task ID has at most one session. A session moves through four
// phases:
//
//	none ──vote──▶ buffering ──open──▶ open ──quorum or timeout──▶ resolved
//	  └──────────────open──────────────▲
//
// Votes that arrive before [Engine.OpenSession] are buffered and counted
// when the session opens. An open session resolves as soon as it holds
// RequiredVotes votes, or when its deadline passes with whatever votes it
// has. A resolved session emits exactly one [Result] and ignores all later
// input.
//
// The state machine itself is [Reduce], a pure function over [Session]
// and [Message] values. [Engine] wraps it with per-task locking, timers,
// ordered per-task event delivery and [Engine.Await].
//
// # Strategies
//
//   - [Majority]: approvals strictly outnumber rejections
//   - [Unanimous]: at least one vote and no rejections
//   - [Weighted]: summed confidence of approvals strictly exceeds that of
//     rejections, each confidence clamped below at zero
//
// Unanimous does not short-circuit on the first rejection; like the other
// strategies it waits for the full quorum or the deadline.
//
// # Timers
//
// Deadlines go through a [Scheduler]. [WallClock] uses time.AfterFunc;
// [Manual] never fires, leaving [Engine.Timeout] as the only trigger. A
// timer that fires after its session resolved does nothing.
package consensus
