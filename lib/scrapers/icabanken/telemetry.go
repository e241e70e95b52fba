package icabanken

import (
	"mortgage-scraper/lib/restyutil"
	"mortgage-scraper/lib/telemetry"
)

var tracer = telemetry.Tracer("mortgagescraper.lib.scrapers.icabanken")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
