package core

import "time"

// Clock measures the time between Start and the latest Update on the
// monotonic clock.
type Clock struct {
	start   time.Time
	running bool
	elapsed time.Duration
}

func NewClock() *Clock {
	return &Clock{}
}

// Update samples the elapsed time. Has no effect on stopped clocks.
func (c *Clock) Update() {
	if c.running {
		c.elapsed = time.Since(c.start)
	}
}

// Start restarts the clock from zero.
func (c *Clock) Start() {
	c.start = time.Now()
	c.running = true
	c.elapsed = 0
}

// Stop takes a last sample and freezes it.
func (c *Clock) Stop() {
	c.Update()
	c.running = false
}

// Elapsed returns the last sample in seconds.
func (c *Clock) Elapsed() float64 {
	return c.elapsed.Seconds()
}

func (c *Clock) Duration() time.Duration {
	return c.elapsed
}
