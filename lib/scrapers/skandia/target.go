package skandia

import (
	"context"

	"mortgage-scraper/lib/record"
	"mortgage-scraper/lib/scrape"
	"mortgage-scraper/lib/segment"
)

// Target prices every segment for every listed binding period. The
// first page fetches the rate list and yields no offers; the pages
// after it price one segment each, entry-major.
type Target struct {
	client   *Client
	segments []segment.Segment

	bootstrapped bool
	entries      []RateListEntry
	index        int
}

func NewTarget(client *Client, segments []segment.Segment) *Target {
	return &Target{client: client, segments: segments}
}

func (t *Target) Name() string {
	return "skandia"
}

func (t *Target) HasMore() bool {
	if !t.bootstrapped {
		return true
	}
	return t.index < len(t.entries)*len(t.segments)
}

func (t *Target) FetchPage(ctx context.Context, req scrape.RequestContext) ([]record.Offer, error) {
	if !t.bootstrapped {
		entries, err := t.client.FetchRateList(ctx, req.UserAgent)
		if err != nil {
			return nil, err
		}
		t.entries = entries
		t.bootstrapped = true
		return nil, nil
	}

	entry := t.entries[t.index/len(t.segments)]
	seg := t.segments[t.index%len(t.segments)]

	offer, err := t.client.FetchDiscount(ctx, req.UserAgent, entry, seg)
	if err != nil {
		return nil, err
	}
	t.index++
	return []record.Offer{offer}, nil
}
