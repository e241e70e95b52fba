package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"mortgage-scraper/lib/record"
	"mortgage-scraper/lib/sink/db"
	"mortgage-scraper/lib/sqliteutil"
)

// SQLite appends offers to a local sqlite file or a remote libsql
// database, one row per offer in submission order.
type SQLite struct {
	db        *sql.DB
	finalized bool
}

func NewSQLite(path string) (*SQLite, error) {
	database, err := sqliteutil.OpenDB(db.Schema, path)
	if err != nil {
		return nil, err
	}
	return &SQLite{db: database}, nil
}

const insertOffer = `
INSERT INTO offers (
	bank, term_months, term_label, rate, effective_rate,
	loan_amount, asset_value, ltv, url, scraped_at, metadata
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Write(ctx context.Context, offers []record.Offer) error {
	if s.finalized {
		return fmt.Errorf("write after finalize")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, o := range offers {
		metadata := ""
		if len(o.Metadata) > 0 {
			buf, err := json.Marshal(o.Metadata)
			if err != nil {
				return err
			}
			metadata = string(buf)
		}
		_, err = tx.ExecContext(
			ctx, insertOffer,
			o.Bank, o.TermMonths, o.TermLabel, o.Rate, o.EffectiveRate,
			o.LoanAmount, o.AssetValue, o.LTV, o.Url, o.ScrapedAt.Unix(), metadata,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) Finalize(ctx context.Context) error {
	if s.finalized {
		return nil
	}
	s.finalized = true
	return s.db.Close()
}
