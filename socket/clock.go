package socket

import "time"

// Timer is a pending callback that can be retracted.
type Timer interface {
	Stop() bool
}

// Clock schedules deferred work. Tests swap in a manual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
