package icabanken

import (
	"context"

	"mortgage-scraper/lib/record"
	"mortgage-scraper/lib/scrape"
	"mortgage-scraper/lib/segment"
)

// Target prices every segment for every fixation term, period-major:
// all segments at 3 months, then at 12, and so on. One page is one
// proposal.
type Target struct {
	client   *Client
	segments []segment.Segment
	index    int
}

func NewTarget(client *Client, segments []segment.Segment) *Target {
	return &Target{client: client, segments: segments}
}

func (t *Target) Name() string {
	return "ica"
}

func (t *Target) HasMore() bool {
	return t.index < len(t.segments)*len(Periods)
}

func (t *Target) FetchPage(ctx context.Context, req scrape.RequestContext) ([]record.Offer, error) {
	period := Periods[t.index/len(t.segments)]
	seg := t.segments[t.index%len(t.segments)]

	offer, err := t.client.FetchProposal(ctx, req.UserAgent, period, seg)
	if err != nil {
		return nil, err
	}
	t.index++
	return []record.Offer{offer}, nil
}
