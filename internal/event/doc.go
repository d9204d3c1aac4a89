// Package event provides a synchronous pub-sub bus for the signals a
// quorum run emits: task registration and status changes, execution
// start and finish, consensus session progress, and persistence or inbox
// failures.
//
// Publishers never depend on subscribers. The CLI subscribes to render
// progress, tests subscribe to observe ordering, and nothing subscribes
// at all in library use.
//
// # Ordering
//
// Handlers run on the publishing goroutine. Handlers for the exact event
// type run first, then wildcard handlers registered with
// [Bus.SubscribeAll], each group in registration order. A handler that
// panics is logged and skipped.
//
// # Usage
//
//	bus := event.NewBus(event.WithLogger(logger))
//	bus.Subscribe(event.TypeConsensusResolved, func(e event.Event) {
//	    res := e.(event.ConsensusResolvedEvent)
//	    fmt.Println(res.TaskID, res.Approved)
//	})
package event
