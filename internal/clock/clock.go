// Package clock lets timer-driven services run against real time in
// production and a manually advanced clock in tests.
package clock

import "time"

// Clock is the subset of the time package used by the lifecycle and lock services.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) *Timer
	NewTicker(d time.Duration) *Ticker
}

// Timer fires once on C. Stop reports whether the timer was still pending.
type Timer struct {
	C    <-chan time.Time
	stop func() bool
}

func (t *Timer) Stop() bool { return t.stop() }

// Ticker delivers ticks on C until Stop. Slow readers lose ticks, as with time.Ticker.
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) *Timer {
	t := time.NewTimer(d)
	return &Timer{C: t.C, stop: t.Stop}
}

func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
