package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/jobinsight/internal/resilience"
)

// Limited caps the request rate of the wrapped generator.
type Limited struct {
	Generator
	limiter *rate.Limiter
}

// NewLimited allows perMinute calls per minute with a burst of one.
func NewLimited(g Generator, perMinute int) *Limited {
	return &Limited{
		Generator: g,
		limiter:   rate.NewLimiter(rate.Every(time.Minute/time.Duration(max(perMinute, 1))), 1),
	}
}

// Generate waits for a token before calling through.
func (l *Limited) Generate(ctx context.Context, req Request) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", eris.Wrap(err, "llm: rate limit wait")
	}
	return l.Generator.Generate(ctx, req)
}

// Retrying repeats transient failures of the wrapped generator.
type Retrying struct {
	Generator
	policy  resilience.Policy
	timeout time.Duration
}

// NewRetrying makes up to attempts calls, each bounded by timeout when
// positive.
func NewRetrying(g Generator, attempts int, timeout time.Duration) *Retrying {
	p := resilience.DefaultPolicy("llm.generate")
	p.Attempts = max(attempts, 1)
	return &Retrying{Generator: g, policy: p, timeout: timeout}
}

// Generate implements Generator.
func (r *Retrying) Generate(ctx context.Context, req Request) (string, error) {
	return resilience.Call(ctx, r.policy, func(ctx context.Context) (string, error) {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		return r.Generator.Generate(ctx, req)
	})
}
