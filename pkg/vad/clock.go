package vad

import (
	"sort"
	"sync"
	"time"
)

// Clock abstracts wall time and timer scheduling so the silence and
// calibration timers can be driven by virtual time in tests.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d. The returned Timer can be
	// stopped before it fires.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable scheduled callback.
type Timer interface {
	// Stop cancels the timer. It returns false if the timer already
	// fired or was already stopped.
	Stop() bool
}

// SystemClock is the real-time Clock used in production.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return systemTimer{time.AfterFunc(d, f)}
}

type systemTimer struct {
	t *time.Timer
}

func (s systemTimer) Stop() bool { return s.t.Stop() }

// FakeClock is a manually advanced Clock for tests. Timers fire
// synchronously inside Advance, in due order.
type FakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
	nextID int
}

// NewFakeClock creates a FakeClock starting at the given time.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now implements Clock.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements Clock.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &fakeTimer{
		clock: c,
		id:    c.nextID,
		when:  c.now.Add(d),
		fn:    f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d, firing due timers in order.
// Callbacks run on the calling goroutine with the clock set to their
// due time, so durations computed inside them are exact.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		due := c.dueTimersLocked(target)
		if len(due) == 0 {
			break
		}
		for _, t := range due {
			c.now = t.when
			fn := t.fn
			c.mu.Unlock()
			fn()
			c.mu.Lock()
		}
	}
	c.now = target
	c.mu.Unlock()
}

// dueTimersLocked removes and returns timers due at or before target,
// sorted by due time.
func (c *FakeClock) dueTimersLocked(target time.Time) []*fakeTimer {
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range c.timers {
		if !t.when.After(target) {
			due = append(due, t)
		} else {
			rest = append(rest, t)
		}
	}
	c.timers = rest
	sort.Slice(due, func(i, j int) bool {
		if due[i].when.Equal(due[j].when) {
			return due[i].id < due[j].id
		}
		return due[i].when.Before(due[j].when)
	})
	return due
}

func (c *FakeClock) remove(t *fakeTimer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cur := range c.timers {
		if cur == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTimer struct {
	clock *FakeClock
	id    int
	when  time.Time
	fn    func()
}

func (t *fakeTimer) Stop() bool { return t.clock.remove(t) }
