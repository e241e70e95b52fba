package hypoteket

import (
	"mortgage-scraper/lib/restyutil"
	"mortgage-scraper/lib/telemetry"
)

var tracer = telemetry.Tracer("mortgagescraper.lib.scrapers.hypoteket")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
