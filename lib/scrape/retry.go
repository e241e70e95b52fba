package scrape

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// FetchState is where one logical page fetch currently stands.
type FetchState int

const (
	FetchPending FetchState = iota
	FetchAttempting
	FetchRetrying
	FetchSucceeded
	FetchFailed
)

func (s FetchState) String() string {
	switch s {
	case FetchPending:
		return "pending"
	case FetchAttempting:
		return "attempting"
	case FetchRetrying:
		return "retrying"
	case FetchSucceeded:
		return "succeeded"
	case FetchFailed:
		return "failed"
	}
	return "unknown"
}

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = time.Millisecond * 500
	defaultMultiplier     = 2
)

// RetryPolicy bounds how hard a single page fetch is tried. Transient
// failures are re-attempted with a monotonically growing backoff,
// terminal failures stop the fetch at once.
type RetryPolicy struct {
	// attempts per page fetch, the first one included
	MaxAttempts int
	// wait before the second attempt, grows by Multiplier after every
	// further failure
	InitialBackoff time.Duration
	Multiplier     float64

	// swapped out in tests to avoid real waits
	timer backoff.Timer
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.Multiplier <= 1 {
		p.Multiplier = defaultMultiplier
	}
	return p
}

// Attempt is one attempt of a page fetch, kept for the run summary
// and debug logs. Backoff is the wait applied after this attempt
// failed, zero on the final one.
type Attempt struct {
	Number  int
	State   FetchState
	Backoff time.Duration
	Err     error
}

// Do runs op under the policy. The returned list holds one entry per
// attempt made, never none; the error is nil iff the last attempt
// succeeded. A TerminalError stops the fetch without further attempts
// and is returned unwrapped.
func (p RetryPolicy) Do(ctx context.Context, op func() error) ([]Attempt, error) {
	p = p.withDefaults()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialBackoff
	expo.Multiplier = p.Multiplier
	// the schedule stays monotonic and reproducible
	expo.RandomizationFactor = 0
	expo.MaxInterval = time.Minute * 5
	expo.MaxElapsedTime = 0
	expo.Reset()

	var attempts []Attempt
	number := 0

	operation := func() error {
		number++
		err := op()
		if err == nil {
			attempts = append(attempts, Attempt{Number: number, State: FetchSucceeded})
			return nil
		}
		if IsTerminal(err) || number >= p.MaxAttempts {
			attempts = append(attempts, Attempt{Number: number, State: FetchFailed, Err: err})
			return backoff.Permanent(err)
		}
		attempts = append(attempts, Attempt{Number: number, State: FetchRetrying, Err: err})
		return err
	}
	notify := func(err error, wait time.Duration) {
		attempts[len(attempts)-1].Backoff = wait
	}

	err := backoff.RetryNotifyWithTimer(operation, backoff.WithContext(expo, ctx), notify, p.timer)
	return attempts, err
}
