package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"mortgage-scraper/lib/scrapers"
)

func init() {
	rootCmd.AddCommand(targetsCmd)
}

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Prints the lenders this tool knows how to scrape.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Target", "Base URL"})

		for _, info := range scrapers.Describe() {
			t.AppendRow(table.Row{info.Name, info.BaseUrl})
		}

		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
