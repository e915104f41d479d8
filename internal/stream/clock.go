package stream

import "time"

// Clock schedules retry callbacks
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending callback
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is backed by time.AfterFunc
var SystemClock Clock = realClock{}
