package icabanken

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
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

const (
	DefaultBaseUrl  = "https://apimgw-pub.ica.se/t/public.tenant/ica/bank/ac39/mortgage/1.0.0"
	DefaultTokenUrl = "https://www.icabanken.se/api/token/public"
)

// Periods are the fixation terms in months the proposal endpoint
// prices.
var Periods = []int{3, 12, 36, 60}

type ClientOptions struct {
	// overrides the production api, used by tests
	BaseUrl string
	// overrides the public token endpoint, used by tests
	TokenUrl string
	Proxy    string
	// per-request timeout, zero falls back to 30s
	Timeout time.Duration
}

type Client struct {
	http     *resty.Client
	tokenUrl string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(opts ClientOptions) (*Client, error) {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	tokenUrl := opts.TokenUrl
	if tokenUrl == "" {
		tokenUrl = DefaultTokenUrl
	}
	parsed, err := url.Parse(baseUrl)
	if err != nil {
		return nil, err
	}
	tokenParsed, err := url.Parse(tokenUrl)
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
	// the token lives on icabanken.se while the data sits behind the
	// api gateway, redirects may stay within either
	client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(
		parsed.Hostname(), tokenParsed.Hostname(),
	))
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	restyutil.InstrumentClient(client, tracer, restyInstrumentOutput)

	return &Client{http: client, tokenUrl: tokenUrl}, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// ensureToken fetches a bearer token when none is held or the held one
// is about to lapse. The public token only lives for two minutes, so
// long runs refresh it many times.
func (c *Client) ensureToken(ctx context.Context, userAgent string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.accessToken != "" && timezone.Now().Before(c.tokenExpiry) {
		return nil
	}

	ctx, span := tracer.Start(ctx, "client:RefreshToken")
	defer span.End()

	req := c.http.R().SetContext(ctx)
	if userAgent != "" {
		req.SetHeader("user-agent", userAgent)
	}
	res, err := req.Get(c.tokenUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch token")
		return err
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return scrape.HttpError(res.StatusCode(), res.Request.URL)
	}

	var token tokenResponse
	err = json.Unmarshal(res.Body(), &token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected token payload")
		return fmt.Errorf("unexpected token payload: %w", err)
	}
	if token.AccessToken == "" {
		span.SetStatus(codes.Error, "empty token")
		return fmt.Errorf("token endpoint returned an empty access token")
	}

	lifetime := time.Duration(token.ExpiresIn) * time.Second
	// renew a little early so a request never rides a lapsing token
	margin := time.Second * 10
	if lifetime <= margin*2 {
		margin = 0
	}
	c.accessToken = token.AccessToken
	c.tokenExpiry = timezone.Now().Add(lifetime - margin)

	slog.DebugContext(ctx, "refreshed access token", "expires_in", token.ExpiresIn)
	return nil
}

// Proposal is the priced offer for one segment and fixation term,
// with the discount ladder broken out.
type Proposal struct {
	ListInterestRate             jsonutil.Decimal `json:"list_interest_rate"`
	ListAmount                   jsonutil.Decimal `json:"list_amount"`
	RiskDiscountInterestRate     jsonutil.Decimal `json:"risk_discount_interest_rate"`
	RiskDiscountAmount           jsonutil.Decimal `json:"risk_discount_amount"`
	LoyaltyDiscountInterestRate  jsonutil.Decimal `json:"loyalty_discount_interest_rate"`
	LoyaltyDiscountAmount        jsonutil.Decimal `json:"loyalty_discount_amount"`
	CategoryDiscountInterestRate jsonutil.Decimal `json:"category_discount_interest_rate"`
	CategoryDiscountAmount       jsonutil.Decimal `json:"category_discount_amount"`
	OfferedInterestRate          jsonutil.Decimal `json:"offered_interest_rate"`
	OfferedAmount                jsonutil.Decimal `json:"offered_amount"`
	EffectiveInterestRate        jsonutil.Decimal `json:"effective_interest_rate"`
	LoanToValueInterestRate      jsonutil.Decimal `json:"loan_to_value_interest_rate"`
}

type proposalEnvelope struct {
	Response Proposal `json:"response"`
}

// FetchProposal prices one segment for one fixation term.
func (c *Client) FetchProposal(ctx context.Context, userAgent string, periodMonths int, seg segment.Segment) (record.Offer, error) {
	ctx, span := tracer.Start(ctx, "client:FetchProposal")
	defer span.End()

	err := c.ensureToken(ctx, userAgent)
	if err != nil {
		return record.Offer{}, err
	}

	c.mu.Lock()
	bearer := c.accessToken
	c.mu.Unlock()

	req := c.http.R().
		SetContext(ctx).
		SetHeader("authorization", "Bearer "+bearer).
		SetQueryParams(map[string]string{
			"type_of_mortgage":     "BL",
			"period_of_commitment": strconv.Itoa(periodMonths),
			"loan_amount":          strconv.FormatInt(seg.LoanAmount, 10),
			"value_of_the_estate":  strconv.FormatInt(seg.AssetValue, 10),
			"ica_spend_amount":     "0",
		})
	if userAgent != "" {
		req.SetHeader("user-agent", userAgent)
	}
	res, err := req.Get("/interestproposal_v2_0")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch proposal")
		return record.Offer{}, err
	}
	if res.StatusCode() == http.StatusUnauthorized {
		// force a refresh on the next attempt, the token may have
		// been revoked server side
		c.mu.Lock()
		c.accessToken = ""
		c.mu.Unlock()
		span.SetStatus(codes.Error, "token rejected")
		return record.Offer{}, fmt.Errorf("request to %s rejected the bearer token", res.Request.URL)
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, "unexpected status")
		return record.Offer{}, scrape.HttpError(res.StatusCode(), res.Request.URL)
	}

	var envelope proposalEnvelope
	err = json.Unmarshal(res.Body(), &envelope)
	if err != nil {
		if marker, blocked := scrape.SniffBlockPage(string(res.Body())); blocked {
			span.SetStatus(codes.Error, "request blocked")
			return record.Offer{}, fmt.Errorf("request blocked by ica: %q", marker)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "unexpected proposal payload")
		return record.Offer{}, scrape.Terminal(fmt.Errorf("unexpected proposal payload: %w", err))
	}
	proposal := envelope.Response

	return record.Offer{
		Bank:          "ica",
		TermMonths:    periodMonths,
		Rate:          proposal.OfferedInterestRate.Float64(),
		EffectiveRate: proposal.EffectiveInterestRate.Float64(),
		LoanAmount:    seg.LoanAmount,
		AssetValue:    seg.AssetValue,
		LTV:           seg.LTV,
		Url:           res.Request.URL,
		ScrapedAt:     timezone.Now(),
		Metadata: map[string]string{
			"list_interest_rate":              proposal.ListInterestRate.String(),
			"list_amount":                     proposal.ListAmount.String(),
			"risk_discount_interest_rate":     proposal.RiskDiscountInterestRate.String(),
			"risk_discount_amount":            proposal.RiskDiscountAmount.String(),
			"loyalty_discount_interest_rate":  proposal.LoyaltyDiscountInterestRate.String(),
			"loyalty_discount_amount":         proposal.LoyaltyDiscountAmount.String(),
			"category_discount_interest_rate": proposal.CategoryDiscountInterestRate.String(),
			"category_discount_amount":        proposal.CategoryDiscountAmount.String(),
			"offered_amount":                  proposal.OfferedAmount.String(),
			"loan_to_value_interest_rate":     proposal.LoanToValueInterestRate.String(),
		},
	}, nil
}
