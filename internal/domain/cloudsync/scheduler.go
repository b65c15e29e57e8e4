package cloudsync

import "time"

// Scheduler runs fn once after d. The returned cancel stops it if it has
// not started.
type Scheduler interface {
	After(d time.Duration, fn func()) (cancel func())
}

// TimerScheduler schedules on the runtime timer.
type TimerScheduler struct{}

// After implements Scheduler.
func (TimerScheduler) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
