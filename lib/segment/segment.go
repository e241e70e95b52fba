package segment

import (
	"math"
	"math/rand"
)

// Segment is one point of the mortgage market grid: a loan volume
// priced at a loan-to-value ratio. The lender APIs take the loan
// amount and the asset value, ltv travels implicitly.
//
//	ltv = loan / asset  <=>  asset = loan / ltv
type Segment struct {
	LoanAmount int64
	AssetValue int64
	LTV        float64
}

const (
	minLTV                = 0.5
	maxLTV                = 1.0
	defaultLTVGranularity = 0.01
)

// DefaultLoanVolumeBins covers 50k..10M SEK with a resolution that
// decays as volumes grow, keeping a full grid sweep in the low
// thousands of requests per binding period.
func DefaultLoanVolumeBins() []int64 {
	var bins []int64
	for v := int64(50_000); v < 2_000_000; v += 50_000 {
		bins = append(bins, v)
	}
	for v := int64(2_000_000); v < 5_000_000; v += 100_000 {
		bins = append(bins, v)
	}
	for v := int64(5_000_000); v < 10_000_000; v += 250_000 {
		bins = append(bins, v)
	}
	return bins
}

type Options struct {
	// overrides DefaultLoanVolumeBins when non-empty
	LoanVolumeBins []int64
	// ltv grid step within [0.5, 1.0), defaults to 0.01
	LTVGranularity float64
}

// Generate builds the loan volume x ltv grid in deterministic order:
// loan volumes ascending, ltv ascending within each volume.
func Generate(opts Options) []Segment {
	bins := opts.LoanVolumeBins
	if len(bins) == 0 {
		bins = DefaultLoanVolumeBins()
	}
	step := opts.LTVGranularity
	if step <= 0 {
		step = defaultLTVGranularity
	}
	steps := int(math.Round((maxLTV - minLTV) / step))

	segments := make([]Segment, 0, len(bins)*steps)
	for _, loan := range bins {
		for i := 0; i < steps; i++ {
			ltv := minLTV + float64(i)*step
			segments = append(segments, Segment{
				LoanAmount: loan,
				AssetValue: int64(math.Round(float64(loan) / ltv)),
				LTV:        ltv,
			})
		}
	}
	return segments
}

// Shuffle permutes segments in place using the given generator, so
// that url ordering is reproducible for a fixed seed.
func Shuffle(segments []Segment, rng *rand.Rand) {
	rng.Shuffle(len(segments), func(i, j int) {
		segments[i], segments[j] = segments[j], segments[i]
	})
}
