package skandia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
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

const DefaultBaseUrl = "https://www.skandia.se"

type ClientOptions struct {
	// overrides the production site, used by tests
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

// RateListEntry is one listed mortgage rate. The id packs the binding
// period and the ordinary rate into one string, like "3;4,41".
type RateListEntry struct {
	Id   string `json:"id"`
	Text string `json:"text"`
}

func (e RateListEntry) BindingPeriod() string {
	return strings.Split(e.Id, ";")[0]
}

func (e RateListEntry) HousingInterest() string {
	parts := strings.Split(e.Id, ";")
	return parts[len(parts)-1]
}

// FetchRateList lists the binding periods currently priced. Every
// discount request needs a period and its ordinary rate from here.
func (c *Client) FetchRateList(ctx context.Context, userAgent string) ([]RateListEntry, error) {
	ctx, span := tracer.Start(ctx, "client:FetchRateList")
	defer span.End()

	req := c.http.R().SetContext(ctx)
	if userAgent != "" {
		req.SetHeader("user-agent", userAgent)
	}
	res, err := req.Get("/epi-api/interests/mortgage")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch rate list")
		return nil, err
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return nil, scrape.HttpError(res.StatusCode(), res.Request.URL)
	}

	var entries []RateListEntry
	err = json.Unmarshal(res.Body(), &entries)
	if err != nil {
		if marker, blocked := scrape.SniffBlockPage(string(res.Body())); blocked {
			span.SetStatus(codes.Error, "request blocked")
			return nil, fmt.Errorf("request blocked by skandia: %q", marker)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected rate list payload")
		return nil, scrape.Terminal(fmt.Errorf("unexpected rate list payload: %w", err))
	}
	return entries, nil
}

type discountRequest struct {
	BindingPeriod   int    `json:"bindingPeriod"`
	HousingInterest string `json:"housingInterest"`
	LoanVolume      int64  `json:"loanVolume"`
	Price           int64  `json:"price"`
}

// DiscountResponse is the priced discount for one segment and binding
// period. The misspelled fields are the api's own.
type DiscountResponse struct {
	AmortizePercentage          jsonutil.Decimal `json:"AmortizePercentage"`
	AmortizeAmount              jsonutil.Decimal `json:"AmortizeAmount"`
	Discount                    jsonutil.Decimal `json:"Discount"`
	Interest                    jsonutil.Decimal `json:"Interest"`
	BaseDicount                 jsonutil.Decimal `json:"BaseDicount"`
	EffectiveInterestRate       jsonutil.Decimal `json:"EffectiveInterestRate"`
	YearlyDiscount              jsonutil.Decimal `json:"YearlyDiscount"`
	MonthlyDiscount             jsonutil.Decimal `json:"MonthlyDiscount"`
	MonthlyInterestCost         jsonutil.Decimal `json:"MonthlyInterestCost"`
	MonthlyInterestTaxDeduction jsonutil.Decimal `json:"MonthlyInterestTaxDeduction"`
}

// FetchDiscount prices one segment for one rate list entry.
func (c *Client) FetchDiscount(ctx context.Context, userAgent string, entry RateListEntry, seg segment.Segment) (record.Offer, error) {
	ctx, span := tracer.Start(ctx, "client:FetchDiscount")
	defer span.End()

	periodMonths, err := strconv.Atoi(entry.BindingPeriod())
	if err != nil {
		span.SetStatus(codes.Error, "malformed rate list id")
		return record.Offer{}, scrape.Terminal(fmt.Errorf("malformed rate list id %q", entry.Id))
	}

	req := c.http.R().
		SetContext(ctx).
		SetBody(discountRequest{
			BindingPeriod:   periodMonths,
			HousingInterest: entry.HousingInterest(),
			LoanVolume:      seg.LoanAmount,
			Price:           seg.AssetValue,
		})
	if userAgent != "" {
		req.SetHeader("user-agent", userAgent)
	}
	res, err := req.Post("/papi/mortgage/v2.0/discounts")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch discount")
		return record.Offer{}, err
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return record.Offer{}, scrape.HttpError(res.StatusCode(), res.Request.URL)
	}

	var discount DiscountResponse
	err = json.Unmarshal(res.Body(), &discount)
	if err != nil {
		if marker, blocked := scrape.SniffBlockPage(string(res.Body())); blocked {
			span.SetStatus(codes.Error, "request blocked")
			return record.Offer{}, fmt.Errorf("request blocked by skandia: %q", marker)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected discount payload")
		return record.Offer{}, scrape.Terminal(fmt.Errorf("unexpected discount payload: %w", err))
	}

	return record.Offer{
		Bank:          "skandia",
		TermMonths:    periodMonths,
		TermLabel:     entry.Text,
		Rate:          discount.Interest.Float64(),
		EffectiveRate: discount.EffectiveInterestRate.Float64(),
		LoanAmount:    seg.LoanAmount,
		AssetValue:    seg.AssetValue,
		LTV:           seg.LTV,
		Url:           res.Request.URL,
		ScrapedAt:     timezone.Now(),
		Metadata: map[string]string{
			"housing_interest":               entry.HousingInterest(),
			"discount":                       discount.Discount.String(),
			"base_discount":                  discount.BaseDicount.String(),
			"yearly_discount":                discount.YearlyDiscount.String(),
			"monthly_discount":               discount.MonthlyDiscount.String(),
			"monthly_interest_cost":          discount.MonthlyInterestCost.String(),
			"monthly_interest_tax_deduction": discount.MonthlyInterestTaxDeduction.String(),
			"amortize_percentage":            discount.AmortizePercentage.String(),
			"amortize_amount":                discount.AmortizeAmount.String(),
		},
	}, nil
}
