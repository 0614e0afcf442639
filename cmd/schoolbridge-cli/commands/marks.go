package commands

import (
	"os"

	"schoolbridge-backend/lib/scrapers/schoolapp"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(marksCmd)
	rootCmd.AddCommand(yearsCmd)
}

var marksCmd = &cobra.Command{
	Use:   "marks",
	Short: "Prints the current-semester marks table.",
	Run: func(cmd *cobra.Command, args []string) {
		html := fetchPage(cmd.Context(), schoolapp.PageMarks)
		marks := schoolapp.ExtractMarks(html)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Element", "Year", "CC", "Exam", "TP",
			"Moy. SO", "Rat.", "Moy. SR", "Final", "Decision",
		})
		for _, m := range marks {
			t.AppendRow(table.Row{
				m.ElementCode, m.AcademicYear, m.CCMark, m.ExamMark, m.TPMark,
				m.MoySO, m.RatMark, m.MoySR, m.FinalMark, m.Decision,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "Prints the academic-years history table.",
	Run: func(cmd *cobra.Command, args []string) {
		html := fetchPage(cmd.Context(), schoolapp.PageYears)
		years := schoolapp.ExtractYears(html)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Level", "Program", "Year", "Status",
			"Average", "PJ", "Decision", "Rank", "Transcript",
		})
		for _, y := range years {
			t.AppendRow(table.Row{
				y.Level, y.Program, y.AcademicYear, y.Status,
				y.Average, y.PJ, y.Decision, y.Rank, y.TranscriptURL,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
