package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomPacer_DelayWithinBounds(t *testing.T) {
	p := NewRandomPacer(2, 5)
	for range 200 {
		d := p.Delay()
		assert.GreaterOrEqual(t, d, 2*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestNewRandomPacer_Normalizes(t *testing.T) {
	p := NewRandomPacer(3, 1)
	assert.Equal(t, time.Second, p.Min)
	assert.Equal(t, 3*time.Second, p.Max)

	p = NewRandomPacer(-1, 0)
	assert.Equal(t, time.Duration(0), p.Delay())
}

func TestRandomPacer_WaitHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RandomPacer{Min: time.Minute, Max: time.Minute}.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRandomPacer_Waits(t *testing.T) {
	start := time.Now()
	assert.NoError(t, RandomPacer{Min: 20 * time.Millisecond, Max: 20 * time.Millisecond}.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNoPacer(t *testing.T) {
	assert.NoError(t, NoPacer{}.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NoPacer{}.Wait(ctx))
}
