package core

import "time"

// Clock measures the time since Start and the step between two Ticks.
type Clock struct {
	now   func() time.Time
	start time.Time
	last  time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// Start resets the clock. The first Tick after Start measures from here.
func (c *Clock) Start() {
	c.start = c.now()
	c.last = c.start
}

// Stop halts the clock. Ticks on a stopped clock return 0.
func (c *Clock) Stop() {
	c.start = time.Time{}
	c.last = time.Time{}
}

func (c *Clock) Running() bool {
	return !c.start.IsZero()
}

// Tick returns the seconds since the previous Tick (or Start).
func (c *Clock) Tick() float64 {
	if !c.Running() {
		return 0
	}
	t := c.now()
	dt := t.Sub(c.last).Seconds()
	c.last = t
	return dt
}

// Elapsed returns the seconds between Start and the latest Tick.
func (c *Clock) Elapsed() float64 {
	if !c.Running() {
		return 0
	}
	return c.last.Sub(c.start).Seconds()
}
