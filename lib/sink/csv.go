package sink

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"mortgage-scraper/lib/record"
)

var csvHeader = []string{
	"bank", "term_months", "term_label", "rate", "effective_rate",
	"loan_amount", "asset_value", "ltv", "url", "scraped_at", "metadata",
}

// CSV writes offers to a single run-scoped csv file. The header goes
// out at open time so even an empty run leaves a well-formed file.
type CSV struct {
	path      string
	file      *os.File
	writer    *csv.Writer
	finalized bool
}

// Filename returns the export file name for a run started at `now`.
func Filename(now time.Time) string {
	return fmt.Sprintf("mortgage_pricing_%s.csv", now.Format("20060102_150405"))
}

func NewCSV(path string) (*CSV, error) {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(f)
	err = w.Write(csvHeader)
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	return &CSV{path: path, file: f, writer: w}, nil
}

func (s *CSV) Name() string { return "csv" }

func (s *CSV) Path() string { return s.path }

func (s *CSV) Write(ctx context.Context, offers []record.Offer) error {
	if s.finalized {
		return fmt.Errorf("write after finalize on %s", s.path)
	}
	for _, o := range offers {
		row, err := offerRow(o)
		if err != nil {
			return err
		}
		err = s.writer.Write(row)
		if err != nil {
			return err
		}
	}
	s.writer.Flush()
	return s.writer.Error()
}

func (s *CSV) Finalize(ctx context.Context) error {
	if s.finalized {
		return nil
	}
	s.finalized = true

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.file.Sync(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func offerRow(o record.Offer) ([]string, error) {
	metadata := ""
	if len(o.Metadata) > 0 {
		buf, err := json.Marshal(o.Metadata)
		if err != nil {
			return nil, err
		}
		metadata = string(buf)
	}
	return []string{
		o.Bank,
		strconv.Itoa(o.TermMonths),
		o.TermLabel,
		strconv.FormatFloat(o.Rate, 'f', -1, 64),
		strconv.FormatFloat(o.EffectiveRate, 'f', -1, 64),
		strconv.FormatInt(o.LoanAmount, 10),
		strconv.FormatInt(o.AssetValue, 10),
		strconv.FormatFloat(o.LTV, 'f', -1, 64),
		o.Url,
		o.ScrapedAt.Format(time.RFC3339),
		metadata,
	}, nil
}
