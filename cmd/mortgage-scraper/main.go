package main

import (
	"mortgage-scraper/cmd/mortgage-scraper/commands"
	"mortgage-scraper/lib/osutil"
)

func main() {
	commands.ExecuteContext(osutil.SignalContext())
}
