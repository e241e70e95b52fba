package record

import "time"

// Offer is the normalized rate offer every lender adapter produces.
// One offer is one (lender, binding period, market segment) price
// point. Lender-specific response fields that have no common column
// go into Metadata.
type Offer struct {
	Bank          string            `json:"bank"`
	TermMonths    int               `json:"term_months"`
	TermLabel     string            `json:"term_label"`
	Rate          float64           `json:"rate"`
	EffectiveRate float64           `json:"effective_rate"`
	LoanAmount    int64             `json:"loan_amount"`
	AssetValue    int64             `json:"asset_value"`
	LTV           float64           `json:"ltv"`
	Url           string            `json:"url"`
	ScrapedAt     time.Time         `json:"scraped_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}
