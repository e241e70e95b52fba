package scrapers

import (
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/antzucaro/matchr"

	"mortgage-scraper/lib/scrape"
	"mortgage-scraper/lib/scrapers/hypoteket"
	"mortgage-scraper/lib/scrapers/icabanken"
	"mortgage-scraper/lib/scrapers/sbab"
	"mortgage-scraper/lib/scrapers/skandia"
	"mortgage-scraper/lib/segment"
)

type Options struct {
	// outbound proxy for the target's requests
	Proxy string
	// per-request timeout, zero falls back to the client default
	Timeout time.Duration
	// shuffle the segment order with the seeded generator
	Randomize bool
	Seed      int64
	// overrides the default pricing grid
	Segment segment.Options
}

func (o Options) segments() []segment.Segment {
	segments := segment.Generate(o.Segment)
	if o.Randomize {
		segment.Shuffle(segments, rand.New(rand.NewSource(o.Seed)))
	}
	return segments
}

type entry struct {
	baseUrl string
	open    func(opts Options) (scrape.Target, error)
}

var registry = map[string]entry{
	"sbab": {
		baseUrl: sbab.DefaultBaseUrl,
		open: func(opts Options) (scrape.Target, error) {
			client, err := sbab.NewClient(sbab.ClientOptions{Proxy: opts.Proxy, Timeout: opts.Timeout})
			if err != nil {
				return nil, err
			}
			return sbab.NewTarget(client, opts.segments()), nil
		},
	},
	"ica": {
		baseUrl: icabanken.DefaultBaseUrl,
		open: func(opts Options) (scrape.Target, error) {
			client, err := icabanken.NewClient(icabanken.ClientOptions{Proxy: opts.Proxy, Timeout: opts.Timeout})
			if err != nil {
				return nil, err
			}
			return icabanken.NewTarget(client, opts.segments()), nil
		},
	},
	"hypoteket": {
		baseUrl: hypoteket.DefaultBaseUrl,
		open: func(opts Options) (scrape.Target, error) {
			client, err := hypoteket.NewClient(hypoteket.ClientOptions{Proxy: opts.Proxy, Timeout: opts.Timeout})
			if err != nil {
				return nil, err
			}
			return hypoteket.NewTarget(client, opts.segments()), nil
		},
	},
	"skandia": {
		baseUrl: skandia.DefaultBaseUrl,
		open: func(opts Options) (scrape.Target, error) {
			client, err := skandia.NewClient(skandia.ClientOptions{Proxy: opts.Proxy, Timeout: opts.Timeout})
			if err != nil {
				return nil, err
			}
			return skandia.NewTarget(client, opts.segments()), nil
		},
	},
}

// Info describes one target for listings.
type Info struct {
	Name    string
	BaseUrl string
}

func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func Describe() []Info {
	infos := make([]Info, 0, len(registry))
	for _, name := range Names() {
		infos = append(infos, Info{Name: name, BaseUrl: registry[name].baseUrl})
	}
	return infos
}

// Open builds the named target. Unknown names come back as a
// configuration error, with a fuzzy suggestion when one is close
// enough.
func Open(name string, opts Options) (scrape.Target, error) {
	e, ok := registry[strings.ToLower(name)]
	if !ok {
		if suggestion := closestName(name); suggestion != "" {
			return nil, scrape.Configf("unknown target %q, did you mean %q?", name, suggestion)
		}
		return nil, scrape.Configf("unknown target %q, available: %s", name, strings.Join(Names(), ", "))
	}
	return e.open(opts)
}

func closestName(name string) string {
	best := ""
	bestScore := 0.0
	for _, candidate := range Names() {
		score := matchr.JaroWinkler(strings.ToLower(name), candidate, false)
		if score > bestScore {
			best = candidate
			bestScore = score
		}
	}
	if bestScore < 0.8 {
		return ""
	}
	return best
}
