package scrape

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"mortgage-scraper/lib/telemetry"
)

func TestRotatorPinsDefaultWithoutRotation(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrape")
	defer cleanup()

	r := NewIdentityRotator(IdentityOptions{Proxy: "http://127.0.0.1:8888"}, rand.New(rand.NewSource(42)))
	for i := 0; i < 10; i++ {
		id := r.Next()
		require.Equal(t, DefaultUserAgent, id.UserAgent)
		require.Equal(t, "http://127.0.0.1:8888", id.Proxy)
	}
}

func TestRotatorAvoidsImmediateRepeat(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrape")
	defer cleanup()

	r := NewIdentityRotator(IdentityOptions{RotateUserAgent: true}, rand.New(rand.NewSource(42)))

	previous := ""
	for i := 0; i < 200; i++ {
		id := r.Next()
		require.Contains(t, defaultUserAgentPool, id.UserAgent)
		if i > 0 {
			require.NotEqual(t, previous, id.UserAgent)
		}
		previous = id.UserAgent
	}
}

func TestRotatorDeterministicPerSeed(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrape")
	defer cleanup()

	first := NewIdentityRotator(IdentityOptions{RotateUserAgent: true}, rand.New(rand.NewSource(7)))
	second := NewIdentityRotator(IdentityOptions{RotateUserAgent: true}, rand.New(rand.NewSource(7)))

	for i := 0; i < 50; i++ {
		require.Equal(t, first.Next(), second.Next())
	}
}

func TestRotatorSingleEntryPool(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrape")
	defer cleanup()

	r := NewIdentityRotator(IdentityOptions{
		RotateUserAgent: true,
		UserAgents:      []string{"curl/8.0"},
	}, rand.New(rand.NewSource(42)))

	for i := 0; i < 5; i++ {
		require.Equal(t, "curl/8.0", r.Next().UserAgent)
	}
}
