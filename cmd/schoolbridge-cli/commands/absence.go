package commands

import (
	"os"

	"schoolbridge-backend/lib/scrapers/schoolapp"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(absenceCmd)
}

var absenceCmd = &cobra.Command{
	Use:   "absence",
	Short: "Prints the per-element absence tally.",
	Run: func(cmd *cobra.Command, args []string) {
		html := fetchPage(cmd.Context(), schoolapp.PageAbsence)
		absence := schoolapp.ExtractAbsenceSummary(html)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Element", "Justified", "Non justified"})
		for code, count := range absence.Elements {
			t.AppendRow(table.Row{code, count.Justified, count.NonJustified})
		}
		t.AppendFooter(table.Row{"Total", absence.Total.Justified, absence.Total.NonJustified})
		t.SortBy([]table.SortBy{{Name: "Element", Mode: table.Asc}})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
