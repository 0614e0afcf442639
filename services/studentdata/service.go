// Package studentdata composes the portal session bridge with the
// page extractors and owns the durable session record a login leaves
// behind. It renders nothing: route handlers consume it.
package studentdata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"schoolbridge-backend/lib/scrapers/schoolapp"
	"schoolbridge-backend/services/studentdata/db"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("services/studentdata")

var (
	// the student never connected their portal account, or it was
	// disconnected
	ErrNotConnected = fmt.Errorf("no portal session for this account")
	// the stored session token no longer passes the portal's
	// authentication markers, the student has to log in again
	ErrSessionExpired = fmt.Errorf("portal session expired")
)

type Service struct {
	db     *sql.DB
	qry    *db.Queries
	client *schoolapp.Client
}

func NewService(database *sql.DB, client *schoolapp.Client) Service {
	return Service{
		db:     database,
		qry:    db.New(database),
		client: client,
	}
}

type ConnectResult struct {
	Authenticated bool
	// the institutional code identifying the stored session
	Code    string
	Profile *schoolapp.StudentInfo
}

// Connect performs the login handshake and, on success, persists the
// resulting session keyed by the student's institutional code. Bad
// credentials are a normal outcome, not an error.
func (s Service) Connect(ctx context.Context, email, password string) (ConnectResult, error) {
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()
	span.SetAttributes(attribute.String("email", email))

	login, err := s.client.Login(ctx, email, password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ConnectResult{}, err
	}
	if !login.Authenticated {
		return ConnectResult{}, nil
	}

	err = s.qry.UpsertSession(ctx, db.PortalSession{
		Code:         login.Profile.Code,
		Email:        email,
		SessionToken: login.SessionToken,
		Name:         login.Profile.Name,
		Program:      login.Profile.Program,
		Level:        login.Profile.Level,
		CreatedAt:    time.Now().Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ConnectResult{}, err
	}

	return ConnectResult{
		Authenticated: true,
		Code:          login.Profile.Code,
		Profile:       login.Profile,
	}, nil
}

// Disconnect drops the stored session. The portal side expires on its
// own, there is no logout flow to call.
func (s Service) Disconnect(ctx context.Context, code string) error {
	ctx, span := tracer.Start(ctx, "Disconnect")
	defer span.End()

	return s.qry.DeleteSession(ctx, code)
}

func (s Service) session(ctx context.Context, code string) (db.PortalSession, error) {
	session, err := s.qry.GetSession(ctx, code)
	if errors.Is(err, sql.ErrNoRows) {
		return db.PortalSession{}, ErrNotConnected
	}
	return session, err
}

// visit fetches a portal page with the stored session and translates
// the marker check into ErrSessionExpired.
func (s Service) visit(ctx context.Context, code, page string) (string, error) {
	session, err := s.session(ctx, code)
	if err != nil {
		return "", err
	}

	res, err := s.client.Visit(ctx, s.client.PageURL(page), session.SessionToken)
	if err != nil {
		return "", err
	}
	if !res.Authenticated {
		return "", ErrSessionExpired
	}
	return res.Html, nil
}

// Profile fetches a fresh copy of the student profile off the landing
// page. Nothing is cached, the record mirrors the portal as of now.
func (s Service) Profile(ctx context.Context, code string) (schoolapp.StudentInfo, error) {
	ctx, span := tracer.Start(ctx, "Profile")
	defer span.End()
	span.SetAttributes(attribute.String("code", code))

	html, err := s.visit(ctx, code, schoolapp.PageDashboard)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return schoolapp.StudentInfo{}, err
	}
	return schoolapp.ExtractStudentInfo(html), nil
}

func (s Service) Marks(ctx context.Context, code string) ([]schoolapp.Mark, error) {
	ctx, span := tracer.Start(ctx, "Marks")
	defer span.End()
	span.SetAttributes(attribute.String("code", code))

	html, err := s.visit(ctx, code, schoolapp.PageMarks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return schoolapp.ExtractMarks(html), nil
}

func (s Service) Absence(ctx context.Context, code string) (schoolapp.AbsenceSummary, error) {
	ctx, span := tracer.Start(ctx, "Absence")
	defer span.End()
	span.SetAttributes(attribute.String("code", code))

	html, err := s.visit(ctx, code, schoolapp.PageAbsence)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return schoolapp.AbsenceSummary{}, err
	}
	return schoolapp.ExtractAbsenceSummary(html), nil
}

func (s Service) Years(ctx context.Context, code string) ([]schoolapp.YearResult, error) {
	ctx, span := tracer.Start(ctx, "Years")
	defer span.End()
	span.SetAttributes(attribute.String("code", code))

	html, err := s.visit(ctx, code, schoolapp.PageYears)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return schoolapp.ExtractYears(html), nil
}

// StudyPlan fetches the curriculum plan as the portal currently
// renders it for the stored session.
func (s Service) StudyPlan(ctx context.Context, code string) (schoolapp.StudyPlanData, error) {
	ctx, span := tracer.Start(ctx, "StudyPlan")
	defer span.End()
	span.SetAttributes(attribute.String("code", code))

	html, err := s.visit(ctx, code, schoolapp.PageStudyPlan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return schoolapp.StudyPlanData{}, err
	}
	return schoolapp.ExtractStudyPlan(html), nil
}

// SelectStudyPlan re-submits the plan form for another
// level/program/semester selection.
func (s Service) SelectStudyPlan(ctx context.Context, code, niveau, filiere, semestre string) (schoolapp.StudyPlanData, error) {
	ctx, span := tracer.Start(ctx, "SelectStudyPlan")
	defer span.End()
	span.SetAttributes(
		attribute.String("code", code),
		attribute.String("niveau", niveau),
		attribute.String("filiere", filiere),
		attribute.String("semestre", semestre),
	)

	session, err := s.session(ctx, code)
	if err != nil {
		return schoolapp.StudyPlanData{}, err
	}

	plan, authenticated, err := s.client.StudyPlanFor(ctx, session.SessionToken, niveau, filiere, semestre)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return schoolapp.StudyPlanData{}, err
	}
	if !authenticated {
		return schoolapp.StudyPlanData{}, ErrSessionExpired
	}
	return plan, nil
}
