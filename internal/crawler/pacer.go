package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer spaces out requests to the same site.
type Pacer interface {
	// Wait blocks for the pacing delay or until ctx is done.
	Wait(ctx context.Context) error
}

// RandomPacer waits a uniformly random duration in [Min, Max].
type RandomPacer struct {
	Min, Max time.Duration
}

// NewRandomPacer converts second bounds into a RandomPacer. Swapped bounds
// are reordered and negatives clamp to zero.
func NewRandomPacer(minSecs, maxSecs float64) RandomPacer {
	lo := time.Duration(max(minSecs, 0) * float64(time.Second))
	hi := time.Duration(max(maxSecs, 0) * float64(time.Second))
	if hi < lo {
		lo, hi = hi, lo
	}
	return RandomPacer{Min: lo, Max: hi}
}

// Delay draws the next delay.
func (p RandomPacer) Delay() time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + rand.N(p.Max-p.Min+1)
}

// Wait implements Pacer.
func (p RandomPacer) Wait(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NoPacer never waits.
type NoPacer struct{}

// Wait implements Pacer.
func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }
