package studentdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"schoolbridge-backend/lib/scrapers/schoolapp"
	"schoolbridge-backend/lib/testutil"
	"schoolbridge-backend/services/studentdata/db"

	"github.com/stretchr/testify/require"
)

const fakeLoginPage = `<html><body>
<form action="/login" method="post">
	<input type="hidden" name="_csrf" value="csrf-1"/>
	<input type="email" name="email"/>
	<input type="password" name="password"/>
</form>
</body></html>`

const fakeDashboard = `<html><body>
<a href="/logout">Déconnexion</a>
<div class="user-panel">
	<div class="image"><img src="/student/photo/M777"/></div>
	<div class="info"><span class="d-block">Sam Student</span></div>
</div>
<table class="table table-striped table-sm"><tbody>
	<tr><th>Filière</th><td>Génie Civil</td></tr>
	<tr><th>Niveau</th><td>1</td></tr>
</tbody></table>
</body></html>`

const fakeMarksPage = `<html><body>
<a href="/logout">Déconnexion</a>
<div class="content-header"><h4>Notes des elements en cours</h4></div>
<section class="content">
	<table class="table-striped"><tbody>
		<tr>
			<td>GC101</td><td>2023-2024</td><td>12</td><td>13</td><td>14</td>
			<td>12.8</td><td>—</td><td>12.8</td><td>12.8</td><td>VORD</td>
		</tr>
	</tbody></table>
</section>
</body></html>`

const fakeAbsencePage = `<html><body>
<a href="/logout">Déconnexion</a>
<table><tbody>
	<tr><td>GC101</td><td>20</td><td>4</td><td>2</td></tr>
	<tr><td>GC102</td><td>18</td><td>1</td><td>0</td></tr>
</tbody></table>
</body></html>`

const fakeExpiredPage = `<html><body>
<form action="/login" method="post">
	<input type="hidden" name="_csrf" value="csrf-2"/>
</form>
</body></html>`

type fakePortal struct {
	server  *httptest.Server
	expired bool
}

func (p *fakePortal) page(w http.ResponseWriter, r *http.Request, body string) {
	cookie, err := r.Cookie(schoolapp.SessionCookie)
	if p.expired || err != nil || cookie.Value != "session-1" {
		w.Write([]byte(fakeExpiredPage))
		return
	}
	w.Write([]byte(body))
}

func newFakePortal(t *testing.T) *fakePortal {
	p := &fakePortal{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: schoolapp.SessionCookie, Value: "session-1", Path: "/"})
		w.Write([]byte(fakeLoginPage))
	})
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("email") != "sam@x.com" || r.PostForm.Get("password") != "pw" {
			w.Write([]byte(fakeLoginPage))
			return
		}
		w.Header().Set("Location", "/index")
		w.WriteHeader(http.StatusFound)
	})
	mux.HandleFunc("GET /index", func(w http.ResponseWriter, r *http.Request) {
		p.page(w, r, fakeDashboard)
	})
	mux.HandleFunc("GET /student/noteselem-encours", func(w http.ResponseWriter, r *http.Request) {
		p.page(w, r, fakeMarksPage)
	})
	mux.HandleFunc("GET /student/absence/bilan", func(w http.ResponseWriter, r *http.Request) {
		p.page(w, r, fakeAbsencePage)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func setup(t *testing.T) (Service, *fakePortal, func()) {
	res, cleanup := testutil.SetupService(t, testutil.ServiceParams{
		Name:     "services/studentdata",
		DbSchema: db.Schema,
	})

	portal := newFakePortal(t)
	client, err := schoolapp.NewClient(context.Background(), schoolapp.ClientOptions{
		BaseUrl: portal.server.URL,
	})
	require.NoError(t, err)

	return NewService(res.DB, client), portal, cleanup
}

func TestConnectAndFetch(t *testing.T) {
	service, portal, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	res, err := service.Connect(ctx, "sam@x.com", "pw")
	require.NoError(t, err)
	require.True(t, res.Authenticated)
	require.Equal(t, "M777", res.Code)
	require.Equal(t, "Sam Student", res.Profile.Name)

	profile, err := service.Profile(ctx, "M777")
	require.NoError(t, err)
	require.Equal(t, "Génie Civil", profile.Program)

	marks, err := service.Marks(ctx, "M777")
	require.NoError(t, err)
	require.Len(t, marks, 1)
	require.Equal(t, "GC101", marks[0].ElementCode)

	absence, err := service.Absence(ctx, "M777")
	require.NoError(t, err)
	require.Equal(t, 2, absence.Total.Justified)
	require.Equal(t, 5, absence.Total.NonJustified)

	// the portal expiring the session surfaces as a sentinel, not a
	// transport error
	portal.expired = true
	_, err = service.Marks(ctx, "M777")
	require.ErrorIs(t, err, ErrSessionExpired)
}

func TestConnectBadCredentials(t *testing.T) {
	service, _, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	res, err := service.Connect(ctx, "sam@x.com", "nope")
	require.NoError(t, err)
	require.False(t, res.Authenticated)

	// a failed handshake must not leave a session behind
	_, err = service.Profile(ctx, "M777")
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestDisconnect(t *testing.T) {
	service, _, cleanup := setup(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	res, err := service.Connect(ctx, "sam@x.com", "pw")
	require.NoError(t, err)
	require.True(t, res.Authenticated)

	err = service.Disconnect(ctx, "M777")
	require.NoError(t, err)

	_, err = service.Profile(ctx, "M777")
	require.ErrorIs(t, err, ErrNotConnected)
}
