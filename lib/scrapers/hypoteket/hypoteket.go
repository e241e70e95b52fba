package hypoteket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
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

const DefaultBaseUrl = "https://api.hypoteket.com/api/v1"

// fixation terms the api names in camel case
var termMonths = map[string]int{
	"threeMonth": 3,
	"oneYear":    12,
	"threeYear":  36,
	"fiveYear":   60,
}

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

// RateEntry is one fixation term, optionally with a campaign code
// variant of the same rate.
type RateEntry struct {
	InterestTerm              string           `json:"interestTerm"`
	Rate                      jsonutil.Decimal `json:"rate"`
	EffectiveInterestRate     jsonutil.Decimal `json:"effectiveInterestRate"`
	ValidFrom                 string           `json:"validFrom"`
	Id                        int              `json:"id"`
	Order                     int              `json:"order"`
	CodeInterestRate          jsonutil.Decimal `json:"codeInterestRate"`
	CodeEffectiveInterestRate jsonutil.Decimal `json:"codeEffectiveInterestRate"`
	Code                      string           `json:"code"`
}

// FetchRates prices one segment across all fixation terms.
func (c *Client) FetchRates(ctx context.Context, userAgent string, seg segment.Segment) ([]record.Offer, error) {
	ctx, span := tracer.Start(ctx, "client:FetchRates")
	defer span.End()

	req := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"propertyValue": strconv.FormatInt(seg.AssetValue, 10),
			"loanSize":      strconv.FormatInt(seg.LoanAmount, 10),
		})
	if userAgent != "" {
		req.SetHeader("user-agent", userAgent)
	}
	res, err := req.Get("/loans/interestRates")
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
			return nil, fmt.Errorf("request blocked by hypoteket: %q", marker)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected rate payload")
		return nil, scrape.Terminal(fmt.Errorf("unexpected rate payload: %w", err))
	}

	scrapedAt := timezone.Now()
	offers := make([]record.Offer, len(entries))
	for i, entry := range entries {
		metadata := map[string]string{
			"valid_from": entry.ValidFrom,
		}
		if entry.Code != "" {
			metadata["code"] = entry.Code
			metadata["code_interest_rate"] = entry.CodeInterestRate.String()
			metadata["code_effective_interest_rate"] = entry.CodeEffectiveInterestRate.String()
		}
		offers[i] = record.Offer{
			Bank:          "hypoteket",
			TermMonths:    termMonths[entry.InterestTerm],
			TermLabel:     entry.InterestTerm,
			Rate:          entry.Rate.Float64(),
			EffectiveRate: entry.EffectiveInterestRate.Float64(),
			LoanAmount:    seg.LoanAmount,
			AssetValue:    seg.AssetValue,
			LTV:           seg.LTV,
			Url:           res.Request.URL,
			ScrapedAt:     scrapedAt,
			Metadata:      metadata,
		}
	}
	return offers, nil
}
