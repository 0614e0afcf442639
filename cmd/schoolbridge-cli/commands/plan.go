package commands

import (
	"fmt"
	"os"

	"schoolbridge-backend/lib/scrapers/schoolapp"
	"schoolbridge-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	planNiveau   *string
	planFiliere  *string
	planSemestre *string
)

func init() {
	planNiveau = planCmd.Flags().String("niveau", "", "Level to select, defaults to the portal's preselection.")
	planFiliere = planCmd.Flags().String("filiere", "", "Program to select, defaults to the portal's preselection.")
	planSemestre = planCmd.Flags().String("semestre", "", "Semester to select, defaults to the portal's preselection.")
	rootCmd.AddCommand(planCmd)
}

var planCmd = &cobra.Command{
	Use:   "plan [--niveau <level>] [--filiere <program>] [--semestre <semester>]",
	Short: "Prints the study plan modules and their elements.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		client, token := createSession(ctx)

		var plan schoolapp.StudyPlanData
		var authenticated bool
		var err error
		if *planNiveau == "" && *planFiliere == "" && *planSemestre == "" {
			plan, authenticated, err = client.StudyPlan(ctx, token)
		} else {
			plan, authenticated, err = client.StudyPlanFor(ctx, token, *planNiveau, *planFiliere, *planSemestre)
		}
		if err != nil {
			serviceutil.Fatal("failed to fetch study plan", err)
		}
		if !authenticated {
			serviceutil.Fatal("session expired immediately after login", fmt.Errorf("session expired"))
		}

		fmt.Printf(
			"study plan: niveau=%s filiere=%s semestre=%s\n",
			plan.SelectedLevel, plan.SelectedProgram, plan.SelectedSemester,
		)

		for _, module := range plan.Modules {
			renderModule(module)
		}
	},
}

func renderModule(module schoolapp.PlanModule) {
	fmt.Printf(
		"\n%s %s (coef %s, threshold %s)\n",
		module.Code, module.Title, module.Coefficient, module.PassThreshold,
	)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Element", "Title", "CTD", "TP", "Eval", "CC", "Exam", "Written", "Coef TP", "Coef"})
	for _, element := range module.Elements {
		t.AppendRow(table.Row{
			element.Code, element.Title,
			element.HoursCTD, element.HoursTP, element.HoursEval,
			element.CoefCC, element.CoefExam, element.CoefWritten,
			element.CoefTP, element.CoefElement,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
