package segment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultLoanVolumeBins(t *testing.T) {
	bins := DefaultLoanVolumeBins()
	require.Len(t, bins, 89)
	require.Equal(t, int64(50_000), bins[0])
	require.Equal(t, int64(9_750_000), bins[len(bins)-1])

	for i := 1; i < len(bins); i++ {
		require.Greater(t, bins[i], bins[i-1])
	}
}

func TestGenerateDefaultGrid(t *testing.T) {
	segments := Generate(Options{})
	require.Len(t, segments, 89*50)

	first := segments[0]
	require.Equal(t, int64(50_000), first.LoanAmount)
	require.InDelta(t, 0.5, first.LTV, 1e-9)
	require.Equal(t, int64(100_000), first.AssetValue)

	for _, s := range segments {
		require.GreaterOrEqual(t, s.LTV, 0.5)
		require.Less(t, s.LTV, 1.0)
		require.InDelta(t, float64(s.LoanAmount)/s.LTV, float64(s.AssetValue), 1)
	}
}

func TestGenerateCustomGranularity(t *testing.T) {
	segments := Generate(Options{
		LoanVolumeBins: []int64{1_000_000},
		LTVGranularity: 0.1,
	})
	require.Len(t, segments, 5)
	require.Equal(t, int64(2_000_000), segments[0].AssetValue)
	require.InDelta(t, 0.9, segments[len(segments)-1].LTV, 1e-9)
}

func TestShuffleDeterminism(t *testing.T) {
	a := Generate(Options{})
	b := Generate(Options{})

	Shuffle(a, rand.New(rand.NewSource(42)))
	Shuffle(b, rand.New(rand.NewSource(42)))
	require.Equal(t, a, b)

	c := Generate(Options{})
	Shuffle(c, rand.New(rand.NewSource(43)))
	require.NotEqual(t, a, c)
}
