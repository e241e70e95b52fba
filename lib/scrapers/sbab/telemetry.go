package sbab

import (
	"mortgage-scraper/lib/restyutil"
	"mortgage-scraper/lib/telemetry"
)

var tracer = telemetry.Tracer("mortgagescraper.lib.scrapers.sbab")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
