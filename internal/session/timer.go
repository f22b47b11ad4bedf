package session

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown is a cancellable per-question clock. It ticks once per second and
// fires the expiry callback exactly once when it reaches zero; it never
// restarts on its own. At most one clock is running at a time: starting a new
// countdown cancels any previous one.
type Countdown struct {
	clock clockwork.Clock

	mu        sync.Mutex
	remaining int
	budget    int
	running   bool
	cancel    chan struct{}
}

func NewCountdown(clock clockwork.Clock) *Countdown {
	return &Countdown{clock: clock}
}

// Start begins ticking down from budgetSeconds. onTick (optional) receives the
// remaining seconds after each tick; onExpire fires once at zero.
func (c *Countdown) Start(budgetSeconds int, onTick func(remaining int), onExpire func()) {
	c.Cancel()

	c.mu.Lock()
	cancel := make(chan struct{})
	c.cancel = cancel
	c.budget = budgetSeconds
	c.remaining = budgetSeconds
	c.running = true
	c.mu.Unlock()

	// Arm the ticker before returning so the clock is registered with the
	// underlying (possibly fake) clock as soon as Start returns.
	ticker := c.clock.NewTicker(time.Second)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				c.mu.Lock()
				if c.cancel != cancel {
					// Superseded by a newer countdown; this tick is stale.
					c.mu.Unlock()
					return
				}
				c.remaining--
				remaining := c.remaining
				if remaining <= 0 {
					c.running = false
					c.cancel = nil
				}
				c.mu.Unlock()

				if onTick != nil {
					onTick(remaining)
				}
				if remaining <= 0 {
					if onExpire != nil {
						onExpire()
					}
					return
				}
			case <-cancel:
				return
			}
		}
	}()
}

// Cancel stops the running clock, if any. Safe to call repeatedly.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		close(c.cancel)
		c.cancel = nil
		c.running = false
	}
}

// Remaining reports the seconds left on the current clock.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether a clock is currently ticking.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
