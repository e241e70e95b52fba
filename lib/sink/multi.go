package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"mortgage-scraper/lib/record"
)

// Multi fans every write out to several sinks in a fixed order.
type Multi struct {
	sinks []Sink
}

func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

func (m *Multi) Name() string {
	names := make([]string, len(m.sinks))
	for i, s := range m.sinks {
		names[i] = s.Name()
	}
	return strings.Join(names, "+")
}

func (m *Multi) Write(ctx context.Context, offers []record.Offer) error {
	for _, s := range m.sinks {
		err := s.Write(ctx, offers)
		if err != nil {
			return fmt.Errorf("%s: %w", s.Name(), err)
		}
	}
	return nil
}

// Finalize finalizes every sink even when an earlier one fails, so a
// broken output cannot leave the others unclosed.
func (m *Multi) Finalize(ctx context.Context) error {
	var errlist []error
	for _, s := range m.sinks {
		err := s.Finalize(ctx)
		if err != nil {
			errlist = append(errlist, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errlist...)
}
