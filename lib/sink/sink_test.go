package sink

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mortgage-scraper/lib/record"
	"mortgage-scraper/lib/telemetry"
	"mortgage-scraper/lib/timezone"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func testOffer(bank string, i int) record.Offer {
	return record.Offer{
		Bank:          bank,
		TermMonths:    12,
		TermLabel:     "1 år",
		Rate:          4.5 + float64(i)*0.01,
		EffectiveRate: 4.62 + float64(i)*0.01,
		LoanAmount:    1_000_000,
		AssetValue:    2_000_000,
		LTV:           0.5,
		Url:           fmt.Sprintf("https://example.com/rates/%d", i),
		ScrapedAt:     time.Date(2024, 7, 1, 12, 0, 0, 0, timezone.Location),
	}
}

func TestCSVOrdering(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sink")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "out.csv")
	s, err := NewCSV(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	err = s.Write(ctx, []record.Offer{testOffer("sbab", 0), testOffer("sbab", 1)})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Write(ctx, []record.Offer{testOffer("hypoteket", 2)})
	if err != nil {
		t.Fatal(err)
	}
	err = s.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	require.Len(t, rows, 4)
	require.Equal(t, csvHeader, rows[0])
	require.Equal(t, "https://example.com/rates/0", rows[1][8])
	require.Equal(t, "https://example.com/rates/1", rows[2][8])
	require.Equal(t, "https://example.com/rates/2", rows[3][8])
	require.Equal(t, "hypoteket", rows[3][0])

	// finalize is idempotent, writes after it must fail
	require.NoError(t, s.Finalize(ctx))
	require.Error(t, s.Write(ctx, []record.Offer{testOffer("sbab", 3)}))
}

func TestCSVEmptyRunLeavesHeader(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sink")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "empty.csv")
	s, err := NewCSV(path)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Finalize(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, rows, 1)
	require.Equal(t, csvHeader, rows[0])
}

func TestSQLiteDurableAfterFinalize(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sink")
	defer cleanup()

	path := filepath.Join(t.TempDir(), "offers.db")
	s, err := NewSQLite(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	offers := []record.Offer{testOffer("skandia", 0), testOffer("skandia", 1), testOffer("ica", 2)}
	offers[0].Metadata = map[string]string{"discount": "0.15"}

	err = s.Write(ctx, offers)
	if err != nil {
		t.Fatal(err)
	}
	err = s.Finalize(ctx)
	if err != nil {
		t.Fatal(err)
	}

	reopened, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	rows, err := reopened.QueryContext(ctx, "SELECT bank, url, metadata FROM offers ORDER BY id")
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var banks, urls, metadatas []string
	for rows.Next() {
		var bank, url, metadata string
		err := rows.Scan(&bank, &url, &metadata)
		if err != nil {
			t.Fatal(err)
		}
		banks = append(banks, bank)
		urls = append(urls, url)
		metadatas = append(metadatas, metadata)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}

	require.Equal(t, []string{"skandia", "skandia", "ica"}, banks)
	require.Equal(t, "https://example.com/rates/1", urls[1])
	require.Contains(t, metadatas[0], "discount")
}

type recordingSink struct {
	name      string
	written   []string
	finalized int
	fail      bool
}

func (r *recordingSink) Name() string { return r.name }

func (r *recordingSink) Write(ctx context.Context, offers []record.Offer) error {
	if r.fail {
		return fmt.Errorf("disk full")
	}
	for _, o := range offers {
		r.written = append(r.written, o.Url)
	}
	return nil
}

func (r *recordingSink) Finalize(ctx context.Context) error {
	r.finalized++
	return nil
}

func TestMultiFanOut(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sink")
	defer cleanup()

	ctx := context.Background()

	{
		a := &recordingSink{name: "a"}
		b := &recordingSink{name: "b"}
		m := NewMulti(a, b)
		require.Equal(t, "a+b", m.Name())

		err := m.Write(ctx, []record.Offer{testOffer("sbab", 0)})
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, a.written, b.written)

		err = m.Finalize(ctx)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, 1, a.finalized)
		require.Equal(t, 1, b.finalized)
	}
	{
		broken := &recordingSink{name: "broken", fail: true}
		ok := &recordingSink{name: "ok"}
		m := NewMulti(broken, ok)

		err := m.Write(ctx, []record.Offer{testOffer("sbab", 0)})
		require.ErrorContains(t, err, "broken")

		// a failing member must not keep the others from closing
		require.NoError(t, m.Finalize(ctx))
		require.Equal(t, 1, ok.finalized)
	}
}
