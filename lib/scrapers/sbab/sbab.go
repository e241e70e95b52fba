package sbab

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"

	"mortgage-scraper/lib/jsonutil"
	"mortgage-scraper/lib/record"
	"mortgage-scraper/lib/restyutil"
	"mortgage-scraper/lib/scrape"
	"mortgage-scraper/lib/segment"
	"mortgage-scraper/lib/timezone"
)

const DefaultBaseUrl = "https://www.sbab.se/www-open-rest-api"

type ClientOptions struct {
	// overrides the production api, used by tests
	BaseUrl string
	Proxy   string
	// per-request timeout, zero falls back to 30s
	Timeout time.Duration
}

type Client struct {
	http *resty.Client
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(baseUrl)
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("content-type", "application/json")
	client.SetHeader("user-agent", scrape.DefaultUserAgent)
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsed.Hostname()))
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{http: client}, nil
}

// RateEntry is one fixation term of sbab's price-differentiated rates.
type RateEntry struct {
	LoptidText        string           `json:"LoptidText"`
	Rantesats         jsonutil.Decimal `json:"Rantesats"`
	Rantebindningstid int              `json:"Rantebindningstid"`
	EffektivRantesats jsonutil.Decimal `json:"EffektivRantesats"`
}

// FetchRates asks for every fixation term priced for one segment. The
// endpoint takes the estate value before the loan size.
func (c *Client) FetchRates(ctx context.Context, userAgent string, seg segment.Segment) ([]record.Offer, error) {
	ctx, span := tracer.Start(ctx, "client:FetchRates")
	defer span.End()

	req := c.http.R().SetContext(ctx)
	if userAgent != "" {
		req.SetHeader("user-agent", userAgent)
	}
	res, err := req.Get(fmt.Sprintf(
		"/resources/rantor/bolan/hamtaprisdiffaderantor/%d/%d",
		seg.AssetValue, seg.LoanAmount,
	))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch rates")
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, scrape.HttpError(res.StatusCode(), res.Request.URL)
	}

	var entries []RateEntry
	err = json.Unmarshal(res.Body(), &entries)
	if err != nil {
		if marker, blocked := scrape.SniffBlockPage(string(res.Body())); blocked {
			span.SetStatus(codes.Error, "request blocked")
			return nil, fmt.Errorf("request blocked by sbab: %q", marker)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected rate payload")
		return nil, scrape.Terminal(fmt.Errorf("unexpected rate payload: %w", err))
	}

	scrapedAt := timezone.Now()
	offers := make([]record.Offer, len(entries))
	for i, entry := range entries {
		offers[i] = record.Offer{
			Bank:          "sbab",
			TermMonths:    entry.Rantebindningstid,
			TermLabel:     entry.LoptidText,
			Rate:          entry.Rantesats.Float64(),
			EffectiveRate: entry.EffektivRantesats.Float64(),
			LoanAmount:    seg.LoanAmount,
			AssetValue:    seg.AssetValue,
			LTV:           seg.LTV,
			Url:           res.Request.URL,
			ScrapedAt:     scrapedAt,
		}
	}
	return offers, nil
}
