package audio

import (
	"errors"
	"io"
	"sort"
	"sync"
	"time"
)

// manualClock is an audio clock and timer source that only moves when the
// test advances it. Timers fire in time order, on the caller's goroutine.
type manualClock struct {
	mu     sync.Mutex
	now    float64
	timers []*manualTimer
}

type manualTimer struct {
	clock *manualClock
	at    float64
	f     func()
	done  bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (c *manualClock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d.Seconds(), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers on the way.
func (c *manualClock) Advance(d time.Duration) {
	c.AdvanceTo(c.Now() + d.Seconds())
}

func (c *manualClock) AdvanceTo(target float64) {
	for {
		c.mu.Lock()
		sort.SliceStable(c.timers, func(i, j int) bool { return c.timers[i].at < c.timers[j].at })
		var next *manualTimer
		for _, t := range c.timers {
			if !t.done && t.at <= target+1e-12 {
				next = t
				break
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		next.done = true
		if next.at > c.now {
			c.now = next.at
		}
		c.mu.Unlock()
		next.f()
	}
}

// pending returns the number of timers that have not fired or been stopped.
func (c *manualClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

type silentBackend struct {
	starts  int
	resumes int
}

func (b *silentBackend) Start(io.Reader, int) error {
	b.starts++
	return nil
}

func (b *silentBackend) Resume() error {
	b.resumes++
	return nil
}

type brokenBackend struct{ starts int }

func (b *brokenBackend) Start(io.Reader, int) error {
	b.starts++
	return errors.New("no device")
}

func (b *brokenBackend) Resume() error { return nil }
