package commands

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"mortgage-scraper/lib/osutil"
	"mortgage-scraper/lib/telemetry"
	"mortgage-scraper/lib/timezone"
)

var daemonFlagSet *scrapeFlags
var daemonSchedule *string

func init() {
	daemonFlagSet = registerScrapeFlags(daemonCmd)
	daemonSchedule = daemonCmd.Flags().String("cron", "0 6 * * *", "Cron schedule the scrape job runs on, swedish local time.")
	daemonCmd.MarkFlagRequired("target")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon -t <target>... [--cron <spec>] [flags]",
	Short: "Keeps rerunning the scrape job on a cron schedule.",
	Run: func(cmd *cobra.Command, args []string) {
		f := daemonFlagSet
		ctx := cmd.Context()
		setupRun(ctx, "mortgage-scraper-daemon", *f.debug)
		defer telemetry.Shutdown(context.WithoutCancel(ctx))

		cfg := readConfig()

		// a slow run must not pile up behind the next tick
		var inFlight atomic.Bool
		runner := cron.New(
			cron.WithLocation(timezone.Location),
			cron.WithLogger(cronLogger{}),
		)
		_, err := runner.AddFunc(*daemonSchedule, func() {
			if !inFlight.CompareAndSwap(false, true) {
				slog.Warn("previous run is still in flight, skipping this tick")
				return
			}
			defer inFlight.Store(false)

			err := runScrape(ctx, f, cfg)
			if err != nil {
				// a failed run is the daemon's to report, the next tick
				// gets a clean try
				slog.ErrorContext(ctx, "scheduled run failed", "err", err)
			}
		})
		if err != nil {
			osutil.Fatal("invalid cron schedule", err)
		}

		slog.Info("daemon started", "schedule", *daemonSchedule, "targets", *f.targets)
		runner.Start()

		<-ctx.Done()
		// an in-flight run gets to finalize its sinks before the process
		// goes away
		<-runner.Stop().Done()
	},
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append([]any{"err", err}, keysAndValues...)...)
}
