package icabanken

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mortgage-scraper/lib/scrape"
	"mortgage-scraper/lib/segment"
	"mortgage-scraper/lib/telemetry"
)

const proposalPayload = `{
	"response": {
		"list_interest_rate": "4.05",
		"list_amount": "3375",
		"risk_discount_interest_rate": "0.10",
		"risk_discount_amount": "83",
		"loyalty_discount_interest_rate": "0.10",
		"loyalty_discount_amount": "83",
		"category_discount_interest_rate": "0.41",
		"category_discount_amount": "342",
		"offered_interest_rate": "3.44",
		"offered_amount": "2867",
		"effective_interest_rate": "3.51",
		"loan_to_value_interest_rate": "0"
	}
}`

type serverState struct {
	tokenCalls int
	dataCalls  int
	gotAuth    []string
	gotQueries []map[string]string
}

func newTestServer() (*httptest.Server, *serverState) {
	state := &serverState{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/public", func(w http.ResponseWriter, r *http.Request) {
		state.tokenCalls++
		fmt.Fprintf(w, `{"access_token": "tok-%d", "expires_in": 120}`, state.tokenCalls)
	})
	mux.HandleFunc("/interestproposal_v2_0", func(w http.ResponseWriter, r *http.Request) {
		state.dataCalls++
		state.gotAuth = append(state.gotAuth, r.Header.Get("Authorization"))
		state.gotQueries = append(state.gotQueries, map[string]string{
			"type_of_mortgage": r.URL.Query().Get("type_of_mortgage"),
			"ica_spend_amount": r.URL.Query().Get("ica_spend_amount"),
		})
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(proposalPayload))
	})
	server := httptest.NewServer(mux)
	return server, state
}

func newTestClient(t *testing.T, server *httptest.Server) *Client {
	client, err := NewClient(ClientOptions{
		BaseUrl:  server.URL,
		TokenUrl: server.URL + "/api/token/public",
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestFetchProposal(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/icabanken")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	server, state := newTestServer()
	defer server.Close()
	client := newTestClient(t, server)

	seg := segment.Segment{LoanAmount: 1_000_000, AssetValue: 2_000_000, LTV: 0.5}
	offer, err := client.FetchProposal(ctx, "", 3, seg)
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, "ica", offer.Bank)
	require.Equal(t, 3, offer.TermMonths)
	require.Equal(t, 3.44, offer.Rate)
	require.Equal(t, 3.51, offer.EffectiveRate)
	require.Equal(t, "4.05", offer.Metadata["list_interest_rate"])
	require.Equal(t, "342", offer.Metadata["category_discount_amount"])
	require.Contains(t, offer.Url, "period_of_commitment=3")
	require.Contains(t, offer.Url, "loan_amount=1000000")
	require.Contains(t, offer.Url, "value_of_the_estate=2000000")

	// the token is fetched once and reused while it is fresh
	_, err = client.FetchProposal(ctx, "", 12, seg)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, state.tokenCalls)
	require.Equal(t, 2, state.dataCalls)
	require.Equal(t, []string{"Bearer tok-1", "Bearer tok-1"}, state.gotAuth)
	require.Equal(t, map[string]string{
		"type_of_mortgage": "BL",
		"ica_spend_amount": "0",
	}, state.gotQueries[0])
}

func TestFetchProposalRefreshesExpiredToken(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/icabanken")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	server, state := newTestServer()
	defer server.Close()
	client := newTestClient(t, server)

	seg := segment.Segment{LoanAmount: 1_000_000, AssetValue: 2_000_000, LTV: 0.5}
	_, err := client.FetchProposal(ctx, "", 3, seg)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 1, state.tokenCalls)

	// pretend the two minutes have passed
	client.mu.Lock()
	client.tokenExpiry = client.tokenExpiry.Add(-time.Hour)
	client.mu.Unlock()

	err = client.ensureToken(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 2, state.tokenCalls)
}

func TestFetchProposalTokenEndpointDown(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/icabanken")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client, err := NewClient(ClientOptions{
		BaseUrl:  server.URL,
		TokenUrl: server.URL + "/api/token/public",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = client.FetchProposal(ctx, "", 3, segment.Segment{LoanAmount: 100_000, AssetValue: 200_000})
	require.Error(t, err)
	require.False(t, scrape.IsTerminal(err))
}

func TestTargetIteratesPeriodMajor(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/icabanken")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	var periods []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/public", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access_token": "tok-1", "expires_in": 120}`))
	})
	mux.HandleFunc("/interestproposal_v2_0", func(w http.ResponseWriter, r *http.Request) {
		periods = append(periods, r.URL.Query().Get("period_of_commitment"))
		w.Write([]byte(proposalPayload))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client, err := NewClient(ClientOptions{
		BaseUrl:  server.URL,
		TokenUrl: server.URL + "/api/token/public",
	})
	if err != nil {
		t.Fatal(err)
	}

	segments := []segment.Segment{
		{LoanAmount: 100_000, AssetValue: 200_000, LTV: 0.5},
		{LoanAmount: 150_000, AssetValue: 250_000, LTV: 0.6},
	}
	target := NewTarget(client, segments)
	require.Equal(t, "ica", target.Name())

	total := 0
	for target.HasMore() {
		offers, err := target.FetchPage(ctx, scrape.RequestContext{})
		if err != nil {
			t.Fatal(err)
		}
		total += len(offers)
	}

	require.Equal(t, 8, total)
	require.Equal(t, []string{"3", "3", "12", "12", "36", "36", "60", "60"}, periods)
}
