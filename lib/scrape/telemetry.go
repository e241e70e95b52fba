package scrape

import (
	"mortgage-scraper/lib/telemetry"

	"go.opentelemetry.io/otel"
)

var tracer = telemetry.Tracer("mortgagescraper.lib.scrape")

var meter = otel.Meter("mortgagescraper.lib.scrape")
var pagesFetched, _ = meter.Int64Counter("pages_fetched")
var recordsScraped, _ = meter.Int64Counter("records_scraped")
var targetFailures, _ = meter.Int64Counter("target_failures")
