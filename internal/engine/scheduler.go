package engine

import "time"

// Timer is a cancellable scheduled task handle.
type Timer interface {
	// Stop cancels the task if it has not fired yet and reports whether it
	// did.
	Stop() bool
}

// Scheduler schedules cancellable tasks. The production implementation wraps
// [time.AfterFunc]; tests substitute a manual scheduler so backoff behavior is
// verified without wall-clock waits.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type clockScheduler struct{}

// NewScheduler returns the wall-clock scheduler.
func NewScheduler() Scheduler {
	return clockScheduler{}
}

func (clockScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
