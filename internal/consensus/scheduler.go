package consensus

import "time"

// Scheduler runs f once after d. The returned stop function cancels the
// call if it has not started and reports whether it did so. f must not be
// run synchronously from AfterFunc, and stop must not wait for f.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

// SchedulerFunc adapts a function to the Scheduler interface.
type SchedulerFunc func(d time.Duration, f func()) func() bool

// AfterFunc calls fn(d, f).
func (fn SchedulerFunc) AfterFunc(d time.Duration, f func()) func() bool {
	return fn(d, f)
}

// WallClock schedules with time.AfterFunc.
var WallClock Scheduler = SchedulerFunc(func(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
})

// Manual never fires on its own; sessions resolve only by quorum or an
// explicit Engine.Timeout call.
var Manual Scheduler = SchedulerFunc(func(time.Duration, func()) func() bool {
	return func() bool { return false }
})
