package sbab

import (
	"context"

	"mortgage-scraper/lib/record"
	"mortgage-scraper/lib/scrape"
	"mortgage-scraper/lib/segment"
)

// Target walks the pricing grid one segment per page. Every rate
// entry sbab returns for a segment becomes one offer.
type Target struct {
	client   *Client
	segments []segment.Segment
	index    int
}

func NewTarget(client *Client, segments []segment.Segment) *Target {
	return &Target{client: client, segments: segments}
}

func (t *Target) Name() string {
	return "sbab"
}

func (t *Target) HasMore() bool {
	return t.index < len(t.segments)
}

func (t *Target) FetchPage(ctx context.Context, req scrape.RequestContext) ([]record.Offer, error) {
	offers, err := t.client.FetchRates(ctx, req.UserAgent, t.segments[t.index])
	if err != nil {
		return nil, err
	}
	t.index++
	return offers, nil
}
