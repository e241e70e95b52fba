package sink

import (
	"context"

	"mortgage-scraper/lib/record"
)

// Sink receives normalized offers in submission order. Write appends,
// it never reorders or drops records it was handed. Finalize flushes
// everything accepted so far durably and closes the output, the
// engine calls it exactly once per run.
type Sink interface {
	Name() string
	Write(ctx context.Context, offers []record.Offer) error
	Finalize(ctx context.Context) error
}
