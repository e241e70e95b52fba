package scrape

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

type PacerOptions struct {
	// wait applied in front of every request, the first one included
	Delay time.Duration
	// jitter the delay by a factor drawn from [0.5, 1.5)
	Randomize bool
	// hard cap on requests per second across all workers, 0 = off
	RateLimit int
}

// Pacer spaces out requests. Every worker holds its own Pacer so the
// jitter draws stay deterministic per worker, while the rate limiter
// behind them is shared across the whole run.
type Pacer struct {
	opts    PacerOptions
	rng     *rand.Rand
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewPacer(opts PacerOptions, rng *rand.Rand) *Pacer {
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return &Pacer{
		opts:    opts,
		rng:     rng,
		limiter: limiter,
		sleep:   sleepContext,
	}
}

// Split returns a Pacer for one worker: its own jitter source, the
// run's rate limiter.
func (p *Pacer) Split(rng *rand.Rand) *Pacer {
	return &Pacer{
		opts:    p.opts,
		rng:     rng,
		limiter: p.limiter,
		sleep:   p.sleep,
	}
}

// NextDelay is the wait the next request gets. Without jitter it is
// the configured delay itself.
func (p *Pacer) NextDelay() time.Duration {
	if p.opts.Delay <= 0 {
		return 0
	}
	if !p.opts.Randomize {
		return p.opts.Delay
	}
	factor := 0.5 + p.rng.Float64()
	return time.Duration(factor * float64(p.opts.Delay))
}

// Wait blocks until the next request may go out and reports how long
// the delay component was. The rate limiter wait on top of it is not
// part of the returned duration.
func (p *Pacer) Wait(ctx context.Context) (time.Duration, error) {
	delay := p.NextDelay()
	if delay > 0 {
		if err := p.sleep(ctx, delay); err != nil {
			return 0, err
		}
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return 0, err
		}
	}
	return delay, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
