package driven

import "time"

// Timer is a cancellable pending callback.
type Timer interface {
	// Stop prevents the callback from running. Returns false if it already ran.
	Stop() bool
}

// Clock is the core's time source. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time

	// AfterFunc runs f on its own goroutine after d.
	AfterFunc(d time.Duration, f func()) Timer
}
