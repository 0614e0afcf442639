package schoolapp

import (
	"strings"

	"schoolbridge-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Mark is one row of the current-elements marks table. Values are
// captured as rendered ("—" included), interpreting them is up to the
// display layer.
type Mark struct {
	ElementCode  string
	AcademicYear string
	CCMark       string
	ExamMark     string
	TPMark       string
	MoySO        string
	RatMark      string
	MoySR        string
	FinalMark    string
	Decision     string
}

// ExtractMarks reads the marks table anchored under the
// "Notes des elements en cours" heading, preserving row order.
func ExtractMarks(html string) []Mark {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	table := doc.Find(`h4:contains("Notes des elements en cours")`).
		Closest(".content-header").
		NextAllFiltered("section.content").
		Find("table.table-striped")

	var marks []Mark
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")

		marks = append(marks, Mark{
			ElementCode:  htmlutil.CellText(cells, 0),
			AcademicYear: htmlutil.CellText(cells, 1),
			CCMark:       htmlutil.CellText(cells, 2),
			ExamMark:     htmlutil.CellText(cells, 3),
			TPMark:       htmlutil.CellText(cells, 4),
			MoySO:        htmlutil.CellText(cells, 5),
			RatMark:      htmlutil.CellText(cells, 6),
			MoySR:        htmlutil.CellText(cells, 7),
			FinalMark:    htmlutil.CellText(cells, 8),
			Decision:     htmlutil.CellText(cells, 9),
		})
	})

	return marks
}

// YearResult is one row of the per-year results table.
type YearResult struct {
	Level         string
	Program       string
	AcademicYear  string
	Status        string
	Average       string
	PJ            string
	Decision      string
	Rank          string
	TranscriptURL string
}

// ExtractYears reads the academic-years history table. The last cell
// carries a link to the year's transcript.
func ExtractYears(html string) []YearResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var years []YearResult
	doc.Find("table tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")

		years = append(years, YearResult{
			Level:         htmlutil.CellText(cells, 0),
			Program:       htmlutil.CellText(cells, 1),
			AcademicYear:  htmlutil.CellText(cells, 2),
			Status:        htmlutil.CellText(cells, 3),
			Average:       htmlutil.CellText(cells, 4),
			PJ:            htmlutil.CellText(cells, 5),
			Decision:      htmlutil.CellText(cells, 6),
			Rank:          htmlutil.CellText(cells, 7),
			TranscriptURL: htmlutil.FirstAnchor(cells.Eq(8)).Href,
		})
	})

	return years
}
