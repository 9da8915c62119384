package audio

import (
	"time"
)

// Clock reports the audio clock in seconds. It only moves forward.
type Clock interface {
	Now() float64
}

// Stopper cancels a pending callback. Stop returns false if the callback
// already ran or was stopped.
type Stopper interface {
	Stop() bool
}

// Timers schedules fire-and-forget callbacks.
type Timers interface {
	AfterFunc(d time.Duration, f func()) Stopper
}

type wallTimers struct{}

func (wallTimers) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// WallTimers runs callbacks on the wall clock.
func WallTimers() Timers { return wallTimers{} }
