// Package reactor dispatches work onto a scheduler's deferred-execution
// facility, or runs it inline when no scheduler is running.
package reactor

// Scheduler runs deferred work on its own workers.
type Scheduler interface {
	// IsActive reports whether the scheduler is running.
	IsActive() bool
	// RunDeferred hands fn to a worker. It returns once fn is scheduled,
	// not once it has run.
	RunDeferred(fn func())
	// Start runs the scheduler, calling onStart once it is active. It
	// returns after Stop is called.
	Start(onStart func())
	// Stop asks a running scheduler to stop.
	Stop()
}

// InThread runs fn through s. A running scheduler gets fn as deferred work.
// Otherwise fn runs synchronously, unless autostart is set: then s is started,
// fn is dispatched to it, and s is stopped again before InThread returns.
//
// A panic in fn propagates to the caller only when fn runs synchronously.
func InThread(s Scheduler, autostart bool, fn func()) {
	switch {
	case s.IsActive():
		s.RunDeferred(fn)
	case autostart:
		s.Start(func() {
			InThread(s, false, fn)
			s.Stop()
		})
	default:
		fn()
	}
}
