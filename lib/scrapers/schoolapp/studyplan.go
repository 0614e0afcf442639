package schoolapp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"schoolbridge-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PlanElement is one teaching element owned by a module. It has no
// identity outside its parent module's extraction pass.
type PlanElement struct {
	Code        string
	Title       string
	HoursCTD    string
	HoursTP     string
	HoursEval   string
	CoefCC      string
	CoefExam    string
	CoefWritten string
	CoefTP      string
	CoefElement string
}

type PlanModule struct {
	Code          string
	Title         string
	Description   string
	Level         string
	Semester      string
	Hours         string
	Coefficient   string
	PassThreshold string
	Eliminatory   string
	Elements      []PlanElement
}

type PlanOption struct {
	Value    string
	Label    string
	Selected bool
}

type StudyPlanData struct {
	CsrfToken        string
	Levels           []PlanOption
	Programs         []PlanOption
	Semesters        []PlanOption
	SelectedLevel    string
	SelectedProgram  string
	SelectedSemester string
	Modules          []PlanModule
}

func planOptions(sel *goquery.Selection) []PlanOption {
	var options []PlanOption
	sel.Each(func(_ int, option *goquery.Selection) {
		_, selected := option.Attr("selected")
		options = append(options, PlanOption{
			Value:    option.AttrOr("value", ""),
			Label:    htmlutil.CleanText(option.Text()),
			Selected: selected,
		})
	})
	return options
}

func selectedValue(options []PlanOption, fallback string) string {
	for _, o := range options {
		if o.Selected {
			return o.Value
		}
	}
	// a select with no selected attribute renders its first option
	if len(options) > 0 && options[0].Value != "" {
		return options[0].Value
	}
	return fallback
}

// ExtractStudyPlan reads the curriculum-plan page: the selection form
// (level/program/semester plus its csrf token) and the module table.
// A module's elements live in the collapsible row immediately
// following it; the relationship is encoded purely by DOM adjacency,
// there are no ids to match on. A module row with no trailing detail
// row yields an empty element list.
func ExtractStudyPlan(html string) StudyPlanData {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return StudyPlanData{}
	}

	data := StudyPlanData{
		CsrfToken: doc.Find(`input[name="_csrf"]`).AttrOr("value", ""),
		Levels:    planOptions(doc.Find("#niveau option")),
		Programs:  planOptions(doc.Find("#filiere option")),
		Semesters: planOptions(doc.Find("#semestre option")),
	}
	data.SelectedLevel = selectedValue(data.Levels, "1A")
	data.SelectedProgram = selectedValue(data.Programs, "")
	data.SelectedSemester = selectedValue(data.Semesters, "S1")

	doc.Find("table.display > tbody > tr.clickable").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")

		module := PlanModule{
			Code:          htmlutil.CellText(cells, 1),
			Title:         htmlutil.CellText(cells, 2),
			Description:   htmlutil.CellText(cells, 3),
			Level:         htmlutil.CellText(cells, 4),
			Semester:      htmlutil.CellText(cells, 5),
			Hours:         htmlutil.CellText(cells, 6),
			Coefficient:   htmlutil.CellText(cells, 7),
			PassThreshold: htmlutil.CellText(cells, 8),
			Eliminatory:   htmlutil.CellText(cells, 9),
		}

		detail := row.Next()
		if detail.Length() > 0 && detail.HasClass("collapse") {
			detail.Find("table tbody tr").Each(func(_ int, elRow *goquery.Selection) {
				elCells := elRow.Find("td")
				module.Elements = append(module.Elements, PlanElement{
					Code:        htmlutil.CellText(elCells, 0),
					Title:       htmlutil.CellText(elCells, 1),
					HoursCTD:    htmlutil.CellText(elCells, 2),
					HoursTP:     htmlutil.CellText(elCells, 3),
					HoursEval:   htmlutil.CellText(elCells, 4),
					CoefCC:      htmlutil.CellText(elCells, 5),
					CoefExam:    htmlutil.CellText(elCells, 6),
					CoefWritten: htmlutil.CellText(elCells, 7),
					CoefTP:      htmlutil.CellText(elCells, 8),
					CoefElement: htmlutil.CellText(elCells, 9),
				})
			})
		}

		data.Modules = append(data.Modules, module)
	})

	return data
}

// PlanSelection is the curriculum-plan form as the portal expects it,
// including the csrf token from the previously rendered page.
type PlanSelection struct {
	Niveau   string
	Filiere  string
	Semestre string
	Csrf     string
}

// StudyPlan fetches the plan page with the portal's current
// preselection. The second return reports whether the session was
// still authenticated.
func (c *Client) StudyPlan(ctx context.Context, sessionToken string) (StudyPlanData, bool, error) {
	ctx, span := tracer.Start(ctx, "client:StudyPlan")
	defer span.End()

	visit, err := c.Visit(ctx, c.PageURL(PageStudyPlan), sessionToken)
	if err != nil {
		return StudyPlanData{}, false, err
	}
	if !visit.Authenticated {
		return StudyPlanData{}, false, nil
	}
	return ExtractStudyPlan(visit.Html), true, nil
}

// SubmitStudyPlan re-submits the plan's own selection form and
// extracts the resulting page. The second return reports whether the
// session was still authenticated, the portal answers the form with
// the login page when the session or the csrf token went stale.
func (c *Client) SubmitStudyPlan(ctx context.Context, sessionToken string, sel PlanSelection) (StudyPlanData, bool, error) {
	ctx, span := tracer.Start(ctx, "client:SubmitStudyPlan")
	defer span.End()
	span.SetAttributes(
		attribute.String("niveau", sel.Niveau),
		attribute.String("filiere", sel.Filiere),
		attribute.String("semestre", sel.Semestre),
	)

	res, err := c.Http.R().
		SetContext(ctx).
		SetCookie(&http.Cookie{Name: SessionCookie, Value: sessionToken}).
		SetHeader("Referer", c.loginURL()).
		SetHeader("Origin", c.BaseUrl.String()).
		SetFormData(map[string]string{
			"niveau":   sel.Niveau,
			"filiere":  sel.Filiere,
			"semestre": sel.Semestre,
			"_csrf":    sel.Csrf,
		}).
		Post(PageStudyPlan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit study plan form")
		return StudyPlanData{}, false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "study plan form returned non-success status")
		return StudyPlanData{}, false, fmt.Errorf("%w: study plan status %d", ErrUpstreamUnavailable, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse study plan html")
		return StudyPlanData{}, false, err
	}
	if !c.CheckAuth(doc) {
		return StudyPlanData{}, false, nil
	}

	return ExtractStudyPlan(string(res.Body())), true, nil
}

// StudyPlanFor fetches the plan page to obtain a fresh csrf token and
// then submits the requested level/program/semester selection. The
// second return reports whether the session was still authenticated.
func (c *Client) StudyPlanFor(ctx context.Context, sessionToken, niveau, filiere, semestre string) (StudyPlanData, bool, error) {
	ctx, span := tracer.Start(ctx, "client:StudyPlanFor")
	defer span.End()

	initial, authenticated, err := c.StudyPlan(ctx, sessionToken)
	if err != nil {
		return StudyPlanData{}, false, err
	}
	if !authenticated {
		return StudyPlanData{}, false, nil
	}
	// the session can still go stale between the two requests
	data, authenticated, err := c.SubmitStudyPlan(ctx, sessionToken, PlanSelection{
		Niveau:   niveau,
		Filiere:  filiere,
		Semestre: semestre,
		Csrf:     initial.CsrfToken,
	})
	if err != nil {
		return StudyPlanData{}, true, err
	}
	if !authenticated {
		return StudyPlanData{}, false, nil
	}
	return data, true, nil
}
