// Package schoolapp implements a headless client for the institutional
// student portal. The portal exposes no API: authentication is a
// browser-like form handshake and every response is server-rendered
// HTML which gets parsed with css selectors.
package schoolapp

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"schoolbridge-backend/lib/restyutil"
	"schoolbridge-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/schoolapp")

// the portal authenticates with a stateful servlet session cookie,
// not a bearer token
const SessionCookie = "JSESSIONID"

// the portal is known to reject or misbehave on non-browser agents
const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/135.0.0.0 Safari/537.36"

const (
	PageLogin     = "/login"
	PageDashboard = "/index"
	PageMarks     = "/student/noteselem-encours"
	PageAbsence   = "/student/absence/bilan"
	PageYears     = "/student/notes"
	PageStudyPlan = "/plan-etudes-view/modules"
)

var (
	// transport failure or a non-success status on a request that is
	// expected to always succeed. retry policy belongs to the caller.
	ErrUpstreamUnavailable = fmt.Errorf("upstream portal unavailable")
	// the login page markup no longer carries the expected hidden
	// token input, which means the upstream changed incompatibly.
	ErrCsrfTokenMissing = fmt.Errorf("csrf token not found on login page")
)

// AuthChecker decides whether a fetched page belongs to an
// authenticated session. The portal has no "am I logged in" endpoint,
// so validity is inferred from the markup itself.
type AuthChecker func(doc *goquery.Document) bool

// DefaultAuthCheck requires the login form to be gone AND a logout
// link to be present. The status code alone cannot be trusted: the
// portal answers 200 with the login form on bad credentials too.
func DefaultAuthCheck(doc *goquery.Document) bool {
	return doc.Find(`form[action="/login"]`).Length() == 0 &&
		doc.Find(`a[href*="logout"]`).Length() > 0
}

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput dumps every http exchange of clients
// created afterwards to the given output, for scrape debugging.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}

type Client struct {
	BaseUrl   *url.URL
	Http      *resty.Client
	CheckAuth AuthChecker
}

type ClientOptions struct {
	BaseUrl string
	// defaults to DefaultAuthCheck
	CheckAuth AuthChecker
}

func NewClient(ctx context.Context, opts ClientOptions) (*Client, error) {
	baseUrl, err := url.Parse(opts.BaseUrl)
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetBaseURL(opts.BaseUrl)
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	// every step of the handshake judges redirects itself, so the
	// transport must never follow them
	client.GetClient().CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	client.SetHeader("user-agent", userAgent)
	client.SetTimeout(time.Second * 30)

	telemetry.InstrumentResty(client, "scrapers/schoolapp/http")
	restyutil.InstrumentClient(client, nil, restyInstrumentOutput)

	check := opts.CheckAuth
	if check == nil {
		check = DefaultAuthCheck
	}

	c := &Client{
		BaseUrl:   baseUrl,
		Http:      client,
		CheckAuth: check,
	}
	return c, nil
}

func (c *Client) loginURL() string {
	return c.BaseUrl.JoinPath(PageLogin).String()
}

// PageURL resolves a portal path against the client's base url.
func (c *Client) PageURL(path string) string {
	return c.BaseUrl.JoinPath(path).String()
}

func sessionTokenFromCookies(cookies []*http.Cookie) string {
	for _, cookie := range cookies {
		if cookie.Name == SessionCookie {
			return cookie.Value
		}
	}
	return ""
}

type LoginResult struct {
	// the portal-issued session token, the sole artifact proving the
	// authenticated relationship. persisting it is the caller's job.
	SessionToken  string
	Authenticated bool
	// extracted from the landing page, only set when authenticated
	Profile *StudentInfo
}

// Login performs the full browser-like handshake: fetch the login page
// for a csrf token and a pre-auth session cookie, post the credentials
// and confirm authentication against the landing page markup.
//
// Invalid credentials are a normal outcome (Authenticated=false), not
// an error.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(PageLogin)
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch login page")
		return LoginResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, "login page returned non-success status")
		return LoginResult{}, fmt.Errorf("%w: login page status %d", ErrUpstreamUnavailable, res.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse login page html")
		return LoginResult{}, err
	}
	csrf := doc.Find(`input[name="_csrf"]`).AttrOr("value", "")
	if csrf == "" {
		span.SetStatus(codes.Error, ErrCsrfTokenMissing.Error())
		return LoginResult{}, ErrCsrfTokenMissing
	}

	// the login post must carry the pre-auth session cookie or the
	// portal rejects the csrf token
	preauthToken := sessionTokenFromCookies(res.Cookies())

	req := c.Http.R().
		SetContext(ctx).
		SetHeader("Referer", c.loginURL()).
		SetHeader("Origin", c.BaseUrl.String()).
		SetFormData(map[string]string{
			"_csrf":    csrf,
			"email":    email,
			"password": password,
		})
	if preauthToken != "" {
		req.SetCookie(&http.Cookie{Name: SessionCookie, Value: preauthToken})
	}
	res, err = req.Post(PageLogin)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to make login request")
		return LoginResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	// the portal may rotate the session token on login, fall back to
	// the pre-auth one when it doesn't
	token := sessionTokenFromCookies(res.Cookies())
	if token == "" {
		token = preauthToken
	}

	// on success the portal redirects, on bad credentials it
	// re-renders the login form with a 200
	if res.StatusCode() < 300 || res.StatusCode() >= 400 {
		span.SetAttributes(attribute.Int("status", res.StatusCode()))
		return LoginResult{SessionToken: token}, nil
	}

	visit, err := c.Visit(ctx, c.PageURL(PageDashboard), token)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch landing page after login")
		return LoginResult{}, err
	}
	if !visit.Authenticated {
		return LoginResult{SessionToken: token}, nil
	}

	profile := ExtractStudentInfo(visit.Html)
	return LoginResult{
		SessionToken:  token,
		Authenticated: true,
		Profile:       &profile,
	}, nil
}

type VisitResult struct {
	Authenticated bool
	// the raw page for the caller to hand to the matching extractor
	Html string
}

// Visit fetches a portal page with the session cookie attached and
// re-checks the authentication markers on the result. An expired or
// invalid session comes back as Authenticated=false, never an error,
// so callers can tell "log in again" apart from a fetch failure.
func (c *Client) Visit(ctx context.Context, pageUrl, sessionToken string) (VisitResult, error) {
	ctx, span := tracer.Start(ctx, "client:Visit")
	defer span.End()
	span.SetAttributes(attribute.String("url", pageUrl))

	// fail closed without a network call
	if sessionToken == "" {
		return VisitResult{}, nil
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetCookie(&http.Cookie{Name: SessionCookie, Value: sessionToken}).
		SetHeader("Referer", c.loginURL()).
		Get(pageUrl)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch page")
		return VisitResult{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse page html")
		return VisitResult{}, err
	}
	if !c.CheckAuth(doc) {
		return VisitResult{}, nil
	}

	return VisitResult{
		Authenticated: true,
		Html:          string(res.Body()),
	}, nil
}
