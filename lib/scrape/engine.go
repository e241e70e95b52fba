package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"mortgage-scraper/lib/record"
	"mortgage-scraper/lib/sink"
	"mortgage-scraper/lib/timezone"
)

type Config struct {
	// shuffle the target order and jitter the delays, both drawn from
	// the seeded generator
	Randomize bool
	// seed behind every random draw of the run
	Seed int64
	// wait applied in front of every request, the first one included
	Delay time.Duration
	// hard cap on requests per second across all workers, 0 = off
	RateLimit int
	// cap on pages fetched per target, 0 = unlimited
	UrlsLimit int
	// rotate user agents per request instead of pinning the default
	RotateUserAgent bool
	// overrides the built-in user agent pool
	UserAgents []string
	// outbound proxy for every request, static for the whole run
	Proxy string
	// targets processed concurrently, 1 runs them sequentially in
	// plan order
	Workers int
	Retry   RetryPolicy
}

// Engine drives one scraping run: it fixes the plan, paces and
// retries every page fetch, funnels the offers into the sink in fetch
// order and accounts for every target in the summary.
type Engine struct {
	cfg      Config
	sink     sink.Sink
	pacer    *Pacer
	identity IdentityOptions
}

func New(cfg Config, out sink.Sink) (*Engine, error) {
	if out == nil {
		return nil, Configf("no sink configured")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Delay < 0 {
		return nil, Configf("delay must not be negative, got %s", cfg.Delay)
	}
	if cfg.RateLimit < 0 {
		return nil, Configf("rate limit must not be negative, got %d", cfg.RateLimit)
	}
	if cfg.UrlsLimit < 0 {
		return nil, Configf("urls limit must not be negative, got %d", cfg.UrlsLimit)
	}
	if err := ValidateProxy(cfg.Proxy); err != nil {
		return nil, err
	}
	cfg.Retry = cfg.Retry.withDefaults()

	return &Engine{
		cfg:  cfg,
		sink: out,
		pacer: NewPacer(PacerOptions{
			Delay:     cfg.Delay,
			Randomize: cfg.Randomize,
			RateLimit: cfg.RateLimit,
		}, rand.New(rand.NewSource(cfg.Seed))),
		identity: IdentityOptions{
			RotateUserAgent: cfg.RotateUserAgent,
			UserAgents:      cfg.UserAgents,
			Proxy:           cfg.Proxy,
		},
	}, nil
}

// ValidateProxy rejects proxy urls a run must not start with. The
// empty string means no proxy and is fine.
func ValidateProxy(proxy string) error {
	if proxy == "" {
		return nil
	}
	u, err := url.Parse(proxy)
	if err != nil {
		return Configf("proxy url %q: %s", proxy, err.Error())
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "socks5" {
		return Configf("proxy url %q: unsupported scheme %q", proxy, u.Scheme)
	}
	if u.Host == "" {
		return Configf("proxy url %q has no host", proxy)
	}
	return nil
}

// Run processes every target and always finalizes the sink, a
// cancelled run included. A failing target never stops the others;
// the returned error is reserved for the sink breaking.
func (e *Engine) Run(ctx context.Context, targets []Target) (RunSummary, error) {
	ctx, span := tracer.Start(ctx, "engine:Run")
	defer span.End()

	plan, err := BuildPlan(targets, e.cfg.Randomize, rand.New(rand.NewSource(e.cfg.Seed)))
	if err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{Started: timezone.Now()}
	summary.Reports = make([]TargetReport, len(plan.Targets))
	for i, t := range plan.Targets {
		summary.Reports[i] = TargetReport{Target: t.Name(), Status: StatusSkipped}
	}

	slog.InfoContext(ctx, "starting run",
		"plan", plan.Names(),
		"workers", e.cfg.Workers,
		"seed", e.cfg.Seed,
		"sink", e.sink.Name(),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// all sink writes go through here so the output stays append-only
	// no matter how many workers feed it
	var sinkMu sync.Mutex
	var sinkErr error
	write := func(ctx context.Context, offers []record.Offer) error {
		sinkMu.Lock()
		defer sinkMu.Unlock()
		if sinkErr != nil {
			return sinkErr
		}
		if err := e.sink.Write(ctx, offers); err != nil {
			sinkErr = SinkError{Op: "write", Err: err}
			cancel()
			return sinkErr
		}
		return nil
	}

	var reportMu sync.Mutex
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(e.cfg.Seed + int64(worker)))
			pacer := e.pacer.Split(rng)
			rotator := NewIdentityRotator(e.identity, rng)
			for i := range jobs {
				report := e.runTarget(runCtx, plan.Targets[i], pacer, rotator, write)
				reportMu.Lock()
				summary.Reports[i] = report
				reportMu.Unlock()
			}
		}(w)
	}

dispatch:
	for i := range plan.Targets {
		select {
		case jobs <- i:
		case <-runCtx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	// the sink is finalized exactly once, cancellation included, so a
	// torn-down run still leaves a readable output behind
	var finalizeErr error
	if err := e.sink.Finalize(context.WithoutCancel(ctx)); err != nil {
		finalizeErr = SinkError{Op: "finalize", Err: err}
	}

	summary.Finished = timezone.Now()
	slog.InfoContext(ctx, "run finished",
		"duration", summary.Duration().Round(time.Millisecond),
		"succeeded", summary.CountByStatus(StatusSucceeded),
		"failed", summary.CountByStatus(StatusFailed),
		"skipped", summary.CountByStatus(StatusSkipped),
		"records", summary.TotalRecords(),
	)

	if sinkErr != nil {
		span.RecordError(sinkErr)
		span.SetStatus(codes.Error, "sink failed")
		return summary, sinkErr
	}
	if finalizeErr != nil {
		span.RecordError(finalizeErr)
		span.SetStatus(codes.Error, "sink finalize failed")
		return summary, finalizeErr
	}
	return summary, nil
}

func (e *Engine) runTarget(
	ctx context.Context,
	target Target,
	pacer *Pacer,
	rotator *IdentityRotator,
	write func(ctx context.Context, offers []record.Offer) error,
) TargetReport {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("target:%s", target.Name()))
	defer span.End()

	report := TargetReport{Target: target.Name(), Status: StatusSkipped}

	for target.HasMore() {
		if e.cfg.UrlsLimit > 0 && report.Pages >= e.cfg.UrlsLimit {
			slog.InfoContext(ctx, "url limit reached", "target", target.Name(), "pages", report.Pages)
			break
		}
		if err := ctx.Err(); err != nil {
			return interrupted(report, err, span)
		}

		delay, err := pacer.Wait(ctx)
		if err != nil {
			return interrupted(report, err, span)
		}
		identity := rotator.Next()
		req := RequestContext{
			Delay:     delay,
			UserAgent: identity.UserAgent,
			Proxy:     identity.Proxy,
		}

		var offers []record.Offer
		attempts, err := e.cfg.Retry.Do(ctx, func() error {
			var fetchErr error
			offers, fetchErr = target.FetchPage(ctx, req)
			return fetchErr
		})
		report.Attempts += len(attempts)
		if err != nil {
			if ctx.Err() != nil {
				return interrupted(report, ctx.Err(), span)
			}
			targetFailures.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, "target failed")
			slog.ErrorContext(ctx, "target failed",
				"target", target.Name(),
				"pages", report.Pages,
				"err", err,
			)
			report.Status = StatusFailed
			report.Err = err
			return report
		}

		report.Pages++
		pagesFetched.Add(ctx, 1)
		if len(offers) > 0 {
			if err := write(ctx, offers); err != nil {
				report.Status = StatusFailed
				report.Err = err
				return report
			}
			report.Records += len(offers)
			recordsScraped.Add(ctx, int64(len(offers)))
		}
		report.Status = StatusSucceeded
		slog.DebugContext(ctx, "page fetched",
			"target", target.Name(),
			"page", report.Pages,
			"records", len(offers),
			"delay", delay,
		)
	}

	// a target with nothing left to fetch still counts as succeeded
	if report.Status == StatusSkipped {
		report.Status = StatusSucceeded
	}
	return report
}

// interrupted settles the report of a target the cancellation caught:
// untouched ones stay skipped, half-done ones fail with the cause.
func interrupted(report TargetReport, err error, span oteltrace.Span) TargetReport {
	if report.Pages == 0 {
		report.Status = StatusSkipped
		return report
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "target interrupted")
	report.Status = StatusFailed
	report.Err = err
	return report
}
