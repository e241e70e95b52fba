package scrape

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

type TargetStatus string

const (
	StatusSucceeded TargetStatus = "succeeded"
	StatusFailed    TargetStatus = "failed"
	StatusSkipped   TargetStatus = "skipped"
)

// TargetReport is the outcome of one target within a run.
type TargetReport struct {
	Target  string
	Status  TargetStatus
	Pages   int
	Records int
	// fetch attempts made across all pages, retries included
	Attempts int
	Err      error
}

// RunSummary is everything a run produced besides the sink output.
// Reports are in plan order and cover every planned target, including
// the ones a cancellation never let start.
type RunSummary struct {
	Started  time.Time
	Finished time.Time
	Reports  []TargetReport
}

func (s RunSummary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

func (s RunSummary) Report(target string) (TargetReport, bool) {
	for _, r := range s.Reports {
		if r.Target == target {
			return r, true
		}
	}
	return TargetReport{}, false
}

func (s RunSummary) CountByStatus(status TargetStatus) int {
	n := 0
	for _, r := range s.Reports {
		if r.Status == status {
			n++
		}
	}
	return n
}

func (s RunSummary) TotalRecords() int {
	n := 0
	for _, r := range s.Reports {
		n += r.Records
	}
	return n
}

// RenderTable writes the per-target outcomes as a table.
func (s RunSummary) RenderTable(out io.Writer) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Target", "Status", "Pages", "Records", "Attempts", "Error"})

	pages, records, attempts := 0, 0, 0
	for _, r := range s.Reports {
		errText := ""
		if r.Err != nil {
			errText = r.Err.Error()
		}
		t.AppendRow(table.Row{r.Target, string(r.Status), r.Pages, r.Records, r.Attempts, errText})
		pages += r.Pages
		records += r.Records
		attempts += r.Attempts
	}
	t.AppendFooter(table.Row{"total", s.Duration().Round(time.Millisecond).String(), pages, records, attempts, ""})

	t.Render()
}
