// Package executor bounds how many agent invocations run at once.
//
// A [Pool] owns a fixed number of permits backed by a weighted semaphore.
// [Pool.Execute] blocks until a permit is free, picks an [Adapter] (an
// explicit override, or the first available adapter in preference order),
// runs it, and releases the permit on every exit path. Out-of-range
// limits are clamped with [ClampConcurrency], never rejected.
//
// Adapter failures come back as a Result with Success=false together with
// an error matching errors.ErrAdapterFailed. A panicking adapter is
// treated the same way and does not take the pool down.
package executor
