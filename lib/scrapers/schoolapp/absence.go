package schoolapp

import (
	"strconv"
	"strings"

	"schoolbridge-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type AbsenceCount struct {
	Justified    int
	NonJustified int
}

// AbsenceSummary is the per-element absence tally plus a grand total.
// The total always equals the sum over the elements since both are
// accumulated on the same pass over the rows.
type AbsenceSummary struct {
	Total    AbsenceCount
	Elements map[string]AbsenceCount
}

// ExtractAbsenceSummary reads the first table of the absence report.
// Non-numeric count cells parse to zero instead of poisoning the
// running totals.
func ExtractAbsenceSummary(html string) AbsenceSummary {
	out := AbsenceSummary{
		Elements: map[string]AbsenceCount{},
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return out
	}

	doc.Find("table").First().Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}

		code := htmlutil.CellText(cells, 0)
		nonJustified := parseCount(htmlutil.CellText(cells, 2))
		justified := parseCount(htmlutil.CellText(cells, 3))

		out.Elements[code] = AbsenceCount{
			Justified:    justified,
			NonJustified: nonJustified,
		}
		out.Total.Justified += justified
		out.Total.NonJustified += nonJustified
	})

	return out
}

func parseCount(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
