package scrape

import (
	"context"
	"time"

	"mortgage-scraper/lib/record"
)

// RequestContext carries the per-request decisions the engine already
// made: how long it paced before handing out the slot, and which
// identity the request should present.
type RequestContext struct {
	// the wait that was applied before this request was released
	Delay     time.Duration
	UserAgent string
	// proxy url, empty when the run goes out directly
	Proxy string
}

// Target is one lender to scrape. The engine drives it page by page:
// as long as HasMore reports true it paces, picks an identity and
// calls FetchPage, writing whatever offers come back to the sink in
// call order.
//
// FetchPage must classify its failures: wrap errors that retrying
// cannot fix with Terminal, return everything else as-is. A fetch
// returning no offers and no error is a valid empty page.
type Target interface {
	Name() string
	HasMore() bool
	FetchPage(ctx context.Context, req RequestContext) ([]record.Offer, error)
}
