package wpclient

import (
	"context"
	"sync"
	"time"
)

// pacer spaces request issuances at least interval apart. Each caller
// reserves the next free slot under the lock and then sleeps until it
// outside the lock, so concurrent callers queue in reservation order.
type pacer struct {
	interval time.Duration
	clock    Clock

	mu   sync.Mutex
	last time.Time
}

func newPacer(interval time.Duration, clock Clock) *pacer {
	if clock == nil {
		clock = systemClock{}
	}
	return &pacer{interval: interval, clock: clock}
}

// reserve claims the next issuance slot and returns how long to wait for it.
func (p *pacer) reserve() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	slot := now
	if !p.last.IsZero() {
		if next := p.last.Add(p.interval); next.After(slot) {
			slot = next
		}
	}
	p.last = slot
	return slot.Sub(now)
}

// Wait blocks until the caller may issue a request. It returns the time
// spent waiting, or ctx.Err() if ctx ends first. A cancelled reservation
// is not given back; later callers still observe the spacing.
func (p *pacer) Wait(ctx context.Context) (time.Duration, error) {
	if p == nil || p.interval <= 0 {
		return 0, ctx.Err()
	}

	wait := p.reserve()
	if wait <= 0 {
		return 0, ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return wait, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
