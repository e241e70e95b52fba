package scrape

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// blockMarkers are phrases the lenders and their WAFs serve instead of
// data once they decide to cut a client off. Skandia answers with the
// Swedish one, the rest are the usual edge vendors.
var blockMarkers = []string{
	"Vi har stoppat detta anrop",
	"Attention Required! | Cloudflare",
	"Access Denied",
	"Request unsuccessful. Incapsula incident",
}

// SniffBlockPage reports whether body is a block page rather than a
// payload, and which marker gave it away. Works on HTML and on plain
// text bodies alike.
func SniffBlockPage(body string) (string, bool) {
	haystack := body
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err == nil {
		title := doc.Find("title").Text()
		haystack = title + "\n" + doc.Text()
	}
	for _, marker := range blockMarkers {
		if strings.Contains(haystack, marker) {
			return marker, true
		}
	}
	return "", false
}
