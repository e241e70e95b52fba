package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"

	"mortgage-scraper/lib/scrape"
	"mortgage-scraper/lib/telemetry"
)

var tracer = telemetry.Tracer("mortgagescraper.lib.notify")

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

// Mailer sends run reports to the people watching the scrapes.
type Mailer struct {
	config     SmtpConfig
	recipients []string
}

func NewMailer(config SmtpConfig, recipients []string) *Mailer {
	return &Mailer{config: config, recipients: recipients}
}

func Subject(summary scrape.RunSummary) string {
	return fmt.Sprintf(
		"mortgage rates run: %d succeeded, %d failed, %d records",
		summary.CountByStatus(scrape.StatusSucceeded),
		summary.CountByStatus(scrape.StatusFailed),
		summary.TotalRecords(),
	)
}

// RenderText is the plain text report body: the per-target table plus
// where the output ended up.
func RenderText(summary scrape.RunSummary, outputs []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Run started %s and took %s.\n\n",
		summary.Started.Format("2006-01-02 15:04:05"),
		summary.Duration().Round(time.Millisecond),
	)
	summary.RenderTable(&b)
	if len(outputs) > 0 {
		b.WriteString("\nOutput written to:\n")
		for _, output := range outputs {
			fmt.Fprintf(&b, "  - %s\n", output)
		}
	}
	return b.String()
}

func (m *Mailer) SendRunReport(ctx context.Context, summary scrape.RunSummary, outputs []string) error {
	ctx, span := tracer.Start(ctx, "mailer:SendRunReport")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("Mortgage Scraper <%s>", m.config.EmailAddress)
	mail.To = m.recipients
	mail.Subject = Subject(summary)
	mail.Text = []byte(RenderText(summary, outputs))

	addr := fmt.Sprintf("%s:%d", m.config.Server, m.config.Port)
	err := mail.Send(addr, smtp.PlainAuth("", m.config.EmailAddress, m.config.Password, m.config.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}

	return nil
}
