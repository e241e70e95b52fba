package scrape

import (
	"math/rand"
)

// DefaultUserAgent is presented on every request when rotation is off.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

var defaultUserAgentPool = []string{
	DefaultUserAgent,
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:124.0) Gecko/20100101 Firefox/124.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36 Edg/122.0.2365.92",
}

// Identity is what one outgoing request presents to the lender.
type Identity struct {
	UserAgent string
	Proxy     string
}

type IdentityOptions struct {
	// rotate through the pool instead of pinning the first entry
	RotateUserAgent bool
	// overrides the built-in user agent pool
	UserAgents []string
	// static for the whole run
	Proxy string
}

// IdentityRotator hands out the identity for each request. With
// rotation on it draws from the pool without repeating the previous
// pick, so two consecutive requests never look identical.
type IdentityRotator struct {
	opts IdentityOptions
	pool []string
	rng  *rand.Rand
	last int
}

func NewIdentityRotator(opts IdentityOptions, rng *rand.Rand) *IdentityRotator {
	pool := opts.UserAgents
	if len(pool) == 0 {
		pool = defaultUserAgentPool
	}
	return &IdentityRotator{
		opts: opts,
		pool: pool,
		rng:  rng,
		last: -1,
	}
}

func (r *IdentityRotator) Next() Identity {
	if !r.opts.RotateUserAgent {
		return Identity{UserAgent: r.pool[0], Proxy: r.opts.Proxy}
	}
	i := r.rng.Intn(len(r.pool))
	if i == r.last && len(r.pool) > 1 {
		i = (i + 1) % len(r.pool)
	}
	r.last = i
	return Identity{UserAgent: r.pool[i], Proxy: r.opts.Proxy}
}
