package commands

import (
	"os"

	"schoolbridge-backend/lib/scrapers/schoolapp"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(infoCmd)
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Prints the student profile off the portal landing page.",
	Run: func(cmd *cobra.Command, args []string) {
		html := fetchPage(cmd.Context(), schoolapp.PageDashboard)
		info := schoolapp.ExtractStudentInfo(html)

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRows([]table.Row{
			{"Name", info.Name},
			{"Code", info.Code},
			{"Program", info.Program},
			{"Level", info.Level},
			{"Status", info.Status},
			{"Section", info.Section},
			{"Group", info.Group},
			{"Massar code", info.MassarCode},
			{"Email", info.Email},
			{"Phone", info.Phone},
			{"Bac series", info.BacSeries},
			{"Bac year", info.BacYear},
			{"Entry level", info.EntryLevel},
			{"Entry year", info.EntryYear},
		})
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
