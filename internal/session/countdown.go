package session

import "fmt"

// Countdown is the session clock. It only moves while started, so ticks
// delivered outside the Active state have no effect.
type Countdown struct {
	budget       int
	remaining    int
	lowThreshold int
	running      bool
	expired      bool
}

func NewCountdown(budgetSeconds, lowThresholdSeconds int) *Countdown {
	if budgetSeconds < 0 {
		budgetSeconds = 0
	}
	return &Countdown{
		budget:       budgetSeconds,
		remaining:    budgetSeconds,
		lowThreshold: lowThresholdSeconds,
	}
}

// Start resumes ticking. A clock that already hit zero stays stopped.
func (c *Countdown) Start() {
	if c.remaining > 0 {
		c.running = true
	}
}

func (c *Countdown) Stop() { c.running = false }

func (c *Countdown) Running() bool { return c.running }

// Tick advances one second and reports true exactly once, on the tick that
// reaches zero. The clock stops itself at zero.
func (c *Countdown) Tick() bool {
	if !c.running || c.remaining <= 0 {
		return false
	}
	c.remaining--
	if c.remaining > 0 {
		return false
	}
	c.running = false
	if c.expired {
		return false
	}
	c.expired = true
	return true
}

func (c *Countdown) Remaining() int { return c.remaining }

func (c *Countdown) Budget() int { return c.budget }

// Elapsed is budget minus remaining.
func (c *Countdown) Elapsed() int { return c.budget - c.remaining }

// Expired reports whether the clock has reached zero.
func (c *Countdown) Expired() bool { return c.remaining <= 0 }

// Urgent is true once remaining time drops below the low-time threshold.
func (c *Countdown) Urgent() bool { return c.remaining < c.lowThreshold }

// Display renders m:ss with zero-padded seconds.
func (c *Countdown) Display() string {
	return FormatClock(c.remaining)
}

func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
