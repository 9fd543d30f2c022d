package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/config"
	"github.com/Niranjjith/Department-portal/internal/entity"
	"github.com/Niranjjith/Department-portal/internal/repository"
	"github.com/Niranjjith/Department-portal/internal/session"
	"github.com/Niranjjith/Department-portal/internal/templates"
)

const (
	adminEmail    = "admin@college.edu"
	adminPassword = "admin123"
)

type portal struct {
	srv   *httptest.Server
	users *repository.MemoryUserRepository
	docs  *repository.MemoryDocumentRepository
	auth  *auth.Service
}

func newPortal(t *testing.T, csrf bool) *portal {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewMemoryUserRepository()
	docs := repository.NewMemoryDocumentRepository()
	svc := auth.NewService(users, config.AuthConfig{
		AdminName:      "Admin",
		AdminEmail:     adminEmail,
		AdminPassword:  adminPassword,
		LegacyFallback: true,
		BcryptCost:     bcrypt.MinCost,
		SetupTokenTTL:  time.Hour,
	}, logger)
	tmpl, err := templates.Parse()
	require.NoError(t, err)

	router := NewRouter(Deps{
		Auth:      svc,
		Users:     users,
		Notes:     docs,
		Notices:   docs,
		Sessions:  session.NewManager(sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")), "portal-session"),
		Templates: tmpl,
		Logger:    logger,
		CSRF:      config.CSRFConfig{Enabled: csrf, Key: "fedcba9876543210fedcba9876543210"},
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &portal{srv: srv, users: users, docs: docs, auth: svc}
}

type client struct {
	t    *testing.T
	http *http.Client
	base string
}

// client returns a browser-like client with its own cookie jar that does
// not follow redirects.
func (p *portal) client(t *testing.T) *client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{
		t:    t,
		base: p.srv.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	status   int
	location string
	body     string
}

func (c *client) do(req *http.Request) response {
	c.t.Helper()
	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return response{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body)}
}

func (c *client) get(path string) response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	require.NoError(c.t, err)
	return c.do(req)
}

func (c *client) post(path string, form url.Values) response {
	c.t.Helper()
	req, err := http.NewRequest(http.MethodPost, c.base+path, strings.NewReader(form.Encode()))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func (c *client) login(email, password string) response {
	c.t.Helper()
	return c.post("/login", url.Values{"email": {email}, "password": {password}})
}

func (c *client) postJSON(path string, form url.Values) result {
	c.t.Helper()
	resp := c.post(path, form)
	require.Equal(c.t, http.StatusOK, resp.status)
	var out result
	require.NoError(c.t, json.Unmarshal([]byte(resp.body), &out))
	return out
}

func assertRedirect(t *testing.T, resp response, location string) {
	t.Helper()
	assert.Equal(t, http.StatusSeeOther, resp.status)
	assert.Equal(t, location, resp.location)
}

func TestIndexAndHealth(t *testing.T) {
	p := newPortal(t, false)
	c := p.client(t)

	resp := c.get("/")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Welcome to the Department Portal")

	resp = c.get("/healthz")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.JSONEq(t, `{"status":"ok"}`, resp.body)
}

type downDB struct{}

func (downDB) PingContext(context.Context) error { return errors.New("connection refused") }

func TestHealthReportsDatabaseDown(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(downDB{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignupLandsOnStudentDashboard(t *testing.T) {
	p := newPortal(t, false)
	p.docs.AddNote(entity.Note{Title: "Linear algebra notes", Subject: "Maths", Semester: "3"})
	p.docs.AddNote(entity.Note{Title: "Mechanics notes", Subject: "Physics", Semester: "1"})
	p.docs.AddNotice(entity.Notice{Title: "Exam timetable", Body: "Exams begin next week"})
	c := p.client(t)

	resp := c.post("/signup", url.Values{
		"name": {"Asha"}, "email": {"asha@x.com"}, "password": {"pw123456"}, "semester": {"3"},
	})
	assertRedirect(t, resp, "/student")

	resp = c.get("/student")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Welcome, Asha")
	assert.Contains(t, resp.body, "Linear algebra notes")
	assert.NotContains(t, resp.body, "Mechanics notes")
	assert.Contains(t, resp.body, "Exam timetable")

	user, err := p.users.GetByEmail(context.Background(), "asha@x.com")
	require.NoError(t, err)
	assert.Equal(t, entity.RoleStudent, user.Role)
	assert.Equal(t, "3", user.Semester)
}

func TestSignupRejections(t *testing.T) {
	p := newPortal(t, false)
	c := p.client(t)
	form := func(email string) url.Values {
		return url.Values{"name": {"A"}, "email": {email}, "password": {"pw123456"}, "semester": {"2"}}
	}

	resp := c.post("/signup", form(adminEmail))
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Equal(t, "Admin email is reserved.", resp.body)

	assertRedirect(t, c.post("/signup", form("a@x.com")), "/student")

	other := p.client(t)
	resp = other.post("/signup", form("a@x.com"))
	assert.Equal(t, "User already registered with this email.", resp.body)

	resp = other.post("/signup", url.Values{"name": {"B"}, "email": {"b@x.com"}, "password": {"pw"}, "semester": {"8"}})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "semester must be one of 1 2 3 4 5 6")

	users, err := p.users.List(context.Background(), repository.UserFilter{})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestLoginFailureRerendersForm(t *testing.T) {
	p := newPortal(t, false)
	c := p.client(t)

	resp := c.login("nobody@x.com", "wrong")
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Email or password is incorrect.")
	assert.Contains(t, resp.body, `value="nobody@x.com"`)
}

func TestAdminFallbackLogin(t *testing.T) {
	p := newPortal(t, false)
	c := p.client(t)

	assertRedirect(t, c.login(adminEmail, adminPassword), "/admin")

	resp := c.get("/admin")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Admin dashboard")
	assert.Contains(t, resp.body, adminEmail)

	n, err := p.users.Count(context.Background(), entity.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A second fallback login reuses the same record.
	assertRedirect(t, p.client(t).login(adminEmail, adminPassword), "/admin")
	n, err = p.users.Count(context.Background(), entity.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRoleRouting(t *testing.T) {
	p := newPortal(t, false)
	hash, err := auth.HashPassword("teach123", bcrypt.MinCost)
	require.NoError(t, err)
	_, err = p.users.Create(context.Background(), entity.User{Name: "Tara", Email: "tara@x.com", PasswordHash: hash, Role: entity.RoleTeacher})
	require.NoError(t, err)

	anon := p.client(t)
	for _, path := range []string{"/student", "/teacher", "/admin", "/admin/settings", "/admin/add-student"} {
		assertRedirect(t, anon.get(path), "/login")
	}

	c := p.client(t)
	assertRedirect(t, c.login("tara@x.com", "teach123"), "/teacher")
	resp := c.get("/teacher")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Welcome, Tara")

	assertRedirect(t, c.get("/admin"), "/login")
	assertRedirect(t, c.get("/student"), "/login")
	assertRedirect(t, c.post("/admin/add-student", url.Values{"name": {"X"}}), "/login")

	// Signed-in users skip the login and signup forms.
	assertRedirect(t, c.get("/login"), "/teacher")
	assertRedirect(t, c.get("/signup"), "/teacher")
}

func TestLogoutEndsSession(t *testing.T) {
	p := newPortal(t, false)
	c := p.client(t)

	assertRedirect(t, c.post("/signup", url.Values{
		"name": {"A"}, "email": {"a@x.com"}, "password": {"pw123456"}, "semester": {"1"},
	}), "/student")
	assert.Equal(t, http.StatusOK, c.get("/student").status)

	assertRedirect(t, c.post("/logout", nil), "/login")
	assertRedirect(t, c.get("/student"), "/login")
	assert.Equal(t, http.StatusOK, c.get("/login").status)
}

func TestSessionOfDeletedUserIsRejected(t *testing.T) {
	p := newPortal(t, false)
	c := p.client(t)

	assertRedirect(t, c.post("/signup", url.Values{
		"name": {"A"}, "email": {"a@x.com"}, "password": {"pw123456"}, "semester": {"1"},
	}), "/student")
	user, err := p.users.GetByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.NoError(t, p.users.Delete(context.Background(), user.ID, entity.RoleStudent))

	assertRedirect(t, c.get("/student"), "/login")
	// The stale session was cleared, so the login form renders.
	assert.Equal(t, http.StatusOK, c.get("/login").status)
}

func adminClient(t *testing.T, p *portal) *client {
	t.Helper()
	c := p.client(t)
	assertRedirect(t, c.login(adminEmail, adminPassword), "/admin")
	return c
}

func TestAdminManagesAccounts(t *testing.T) {
	p := newPortal(t, false)
	c := adminClient(t, p)
	ctx := context.Background()

	assert.Equal(t, http.StatusOK, c.get("/admin/add-student").status)
	assertRedirect(t, c.post("/admin/add-student", url.Values{
		"name": {"Zara Second"}, "email": {"zara@x.com"}, "password": {"pw1234"}, "semester": {"2"},
	}), "/admin")
	assertRedirect(t, c.post("/admin/add-student", url.Values{
		"name": {"Omar Fourth"}, "email": {"omar@x.com"}, "password": {"pw1234"}, "semester": {"4"},
	}), "/admin")
	assertRedirect(t, c.post("/admin/add-teacher", url.Values{
		"name": {"Tara Teacher"}, "email": {"tara@x.com"}, "password": {"pw1234"},
	}), "/admin")

	resp := c.post("/admin/add-teacher", url.Values{"name": {"Dup"}, "email": {"zara@x.com"}, "password": {"pw1234"}})
	assert.Equal(t, "User with this email already exists.", resp.body)
	resp = c.post("/admin/add-student", url.Values{"name": {"NoPass"}, "email": {"np@x.com"}, "semester": {"1"}})
	assert.Equal(t, "Error adding student", resp.body)

	resp = c.get("/admin")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Zara Second")
	assert.Contains(t, resp.body, "Omar Fourth")
	assert.Contains(t, resp.body, "Tara Teacher")
	assert.Contains(t, resp.body, "Students: <strong>2</strong>")
	assert.Contains(t, resp.body, "Teachers: <strong>1</strong>")
	assert.Contains(t, resp.body, "Semester 2: 1")

	resp = c.get("/admin?semester=2")
	assert.Contains(t, resp.body, "Zara Second")
	assert.NotContains(t, resp.body, "Omar Fourth")

	resp = c.get("/admin?semester=9")
	assert.Contains(t, resp.body, "Zara Second")
	assert.Contains(t, resp.body, "Omar Fourth")

	zara, err := p.users.GetByEmail(ctx, "zara@x.com")
	require.NoError(t, err)
	tara, err := p.users.GetByEmail(ctx, "tara@x.com")
	require.NoError(t, err)

	// Ids of the wrong role are refused on every id-scoped route.
	assertRedirect(t, c.get("/admin/edit-student/"+tara.ID), "/admin")
	assertRedirect(t, c.post("/admin/edit-student/"+tara.ID, url.Values{"name": {"Hijack"}, "email": {"h@x.com"}, "semester": {"1"}}), "/admin")
	assertRedirect(t, c.post("/admin/delete-student/"+tara.ID, nil), "/admin")
	got, err := p.users.GetByID(ctx, tara.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tara Teacher", got.Name)

	resp = c.get("/admin/edit-teacher/" + tara.ID)
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Tara Teacher")

	assertRedirect(t, c.post("/admin/edit-student/"+zara.ID, url.Values{
		"name": {"Zara Fifth"}, "email": {"zara5@x.com"}, "semester": {"5"},
	}), "/admin")
	got, err = p.users.GetByID(ctx, zara.ID)
	require.NoError(t, err)
	assert.Equal(t, "Zara Fifth", got.Name)
	assert.Equal(t, "zara5@x.com", got.Email)
	assert.Equal(t, "5", got.Semester)

	resp = c.post("/admin/edit-teacher/"+tara.ID, url.Values{"name": {"Tara"}, "email": {"omar@x.com"}})
	assert.Equal(t, "User with this email already exists.", resp.body)

	assertRedirect(t, c.post("/admin/delete-teacher/"+tara.ID, nil), "/admin")
	_, err = p.users.GetByID(ctx, tara.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	assertRedirect(t, c.get("/admin/edit-student/does-not-exist"), "/admin")
}

func TestAdminChangesPassword(t *testing.T) {
	p := newPortal(t, false)
	c := adminClient(t, p)

	cases := []struct {
		form url.Values
		want string
	}{
		{url.Values{"currentPassword": {adminPassword}, "newPassword": {"newpass1"}}, "All fields are required"},
		{url.Values{"currentPassword": {adminPassword}, "newPassword": {"newpass1"}, "confirmPassword": {"newpass2"}}, "New passwords do not match"},
		{url.Values{"currentPassword": {adminPassword}, "newPassword": {"abc"}, "confirmPassword": {"abc"}}, "Password must be at least 6 characters"},
		{url.Values{"currentPassword": {"nope"}, "newPassword": {"newpass1"}, "confirmPassword": {"newpass1"}}, "Current password is incorrect"},
	}
	for _, tc := range cases {
		out := c.postJSON("/admin/change-password", tc.form)
		assert.False(t, out.Success)
		assert.Equal(t, tc.want, out.Message)
	}

	out := c.postJSON("/admin/change-password", url.Values{
		"currentPassword": {adminPassword}, "newPassword": {"newpass1"}, "confirmPassword": {"newpass1"},
	})
	assert.True(t, out.Success)
	assert.Equal(t, "Password updated successfully", out.Message)

	fresh := p.client(t)
	assertRedirect(t, fresh.login(adminEmail, "newpass1"), "/admin")
	resp := p.client(t).login(adminEmail, adminPassword)
	assert.Contains(t, resp.body, "Email or password is incorrect.")
}

func TestAdminChangesEmail(t *testing.T) {
	p := newPortal(t, false)
	c := adminClient(t, p)
	_, err := p.auth.CreateAccount(context.Background(), entity.RoleStudent, auth.AccountInput{
		Name: "S", Email: "s@x.com", Password: "pw1234", Semester: "1",
	})
	require.NoError(t, err)

	out := c.postJSON("/admin/change-email", url.Values{"newEmail": {"s@x.com"}, "currentPassword": {adminPassword}})
	assert.Equal(t, result{Success: false, Message: "Email already in use"}, out)

	out = c.postJSON("/admin/change-email", url.Values{"newEmail": {"boss@college.edu"}})
	assert.Equal(t, "All fields are required", out.Message)

	out = c.postJSON("/admin/change-email", url.Values{"newEmail": {"boss@college.edu"}, "currentPassword": {adminPassword}})
	assert.Equal(t, result{Success: true, Message: "Email updated successfully"}, out)

	resp := c.get("/admin/settings")
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "boss@college.edu")
	assert.Contains(t, resp.body, "Change password")

	assertRedirect(t, p.client(t).login("boss@college.edu", adminPassword), "/admin")
}

func TestSetupProvisionsFirstAdmin(t *testing.T) {
	p := newPortal(t, false)
	token, err := p.auth.IssueSetupToken(context.Background())
	require.NoError(t, err)
	c := p.client(t)

	resp := c.get("/setup?token=bogus")
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = c.get("/setup?token=" + url.QueryEscape(token))
	require.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "Create the administrator account")

	resp = c.post("/setup", url.Values{
		"token": {token}, "name": {"Dean"}, "email": {"dean@college.edu"},
		"password": {"secret1"}, "confirmPassword": {"secret2"},
	})
	assert.Equal(t, http.StatusOK, resp.status)
	assert.Contains(t, resp.body, "confirmPassword does not match")

	assertRedirect(t, c.post("/setup", url.Values{
		"token": {token}, "name": {"Dean"}, "email": {"dean@college.edu"},
		"password": {"secret1"}, "confirmPassword": {"secret1"},
	}), "/admin")
	assert.Equal(t, http.StatusOK, c.get("/admin").status)

	resp = p.client(t).get("/setup?token=" + url.QueryEscape(token))
	assert.Equal(t, "Setup has already been completed.", resp.body)

	// The reserved pair no longer opens the admin account.
	resp = p.client(t).login(adminEmail, adminPassword)
	assert.Contains(t, resp.body, "Email or password is incorrect.")
}

func TestUnknownRoleCannotRedirect(t *testing.T) {
	w := httptest.NewRecorder()
	redirectToDashboard(w, httptest.NewRequest(http.MethodGet, "/login", nil), entity.Role("guest"))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Unknown role. Cannot redirect.", w.Body.String())
}

var csrfField = regexp.MustCompile(`name="gorilla.csrf.Token" value="([^"]+)"`)

func TestCSRFProtectsForms(t *testing.T) {
	p := newPortal(t, true)
	c := p.client(t)

	resp := c.login(adminEmail, adminPassword)
	assert.Equal(t, http.StatusForbidden, resp.status)

	resp = c.get("/login")
	require.Equal(t, http.StatusOK, resp.status)
	m := csrfField.FindStringSubmatch(resp.body)
	require.Len(t, m, 2)

	resp = c.post("/login", url.Values{
		"email": {adminEmail}, "password": {adminPassword}, "gorilla.csrf.Token": {m[1]},
	})
	assertRedirect(t, resp, "/admin")
}
