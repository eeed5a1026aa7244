package metronome

import "time"

// Timer is a pending tick. Stop must be safe to call more than once and after
// the timer already fired.
type Timer interface {
	Stop() bool
}

// Scheduler is the time source the Clock arms its timer with.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealTime schedules on the runtime timer.
var RealTime Scheduler = realTime{}

type realTime struct{}

func (realTime) Now() time.Time { return time.Now() }

func (realTime) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
