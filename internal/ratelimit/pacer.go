package ratelimit

import (
	"sync"
	"time"

	"github.com/weatherdash/weather-api-handler/internal/observability"
)

// Pacer enforces a minimum spacing between the starts of outbound provider
// calls, across all callers. One instance is shared by every fetch path;
// it is injected, not a package global, so multi-tenant setups could run
// one pacer per provider account.
//
// Acquire holds the lock while sleeping, which serializes waiters. That is
// intentional: the gate exists to space out call starts, and with a 100ms
// interval the serialization cost is the spacing itself.
type Pacer struct {
	mu       sync.Mutex
	interval time.Duration
	lastCall time.Time
}

// NewPacer returns a Pacer with the given minimum interval between call
// starts. A non-positive interval disables pacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{interval: interval}
}

// Acquire blocks until at least the configured interval has elapsed since
// the previous granted call, then records the new call start. There is no
// cancellation; a caller commits to waiting out the full delay.
func (p *Pacer) Acquire() {
	if p.interval <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	wait := p.interval - now.Sub(p.lastCall)
	if wait > 0 {
		time.Sleep(wait)
		observability.PacerWaitSeconds.Observe(wait.Seconds())
	} else {
		observability.PacerWaitSeconds.Observe(0)
	}
	p.lastCall = time.Now()
}

// Interval returns the configured minimum spacing.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}
