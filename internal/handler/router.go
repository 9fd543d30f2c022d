package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"
	"github.com/gorilla/securecookie"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/config"
	"github.com/Niranjjith/Department-portal/internal/entity"
	"github.com/Niranjjith/Department-portal/internal/middleware"
	"github.com/Niranjjith/Department-portal/internal/repository"
	"github.com/Niranjjith/Department-portal/internal/session"
)

// Deps is everything the router wires into handlers.
type Deps struct {
	Auth      *auth.Service
	Users     repository.UserStore
	Notes     repository.NoteStore
	Notices   repository.NoticeStore
	Sessions  *session.Manager
	Templates *template.Template
	Logger    *slog.Logger
	CSRF      config.CSRFConfig
	// Secure marks cookies Secure and enables strict CSRF origin checks.
	Secure bool
	// DB is pinged by /healthz; nil skips the check.
	DB Pinger
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	guard := middleware.NewGuard(d.Sessions, d.Users, log)

	index := NewIndexHandler(d.Templates, log)
	login := NewLoginHandler(d.Auth, d.Sessions, d.Templates, log)
	signup := NewSignupHandler(d.Auth, d.Sessions, d.Templates, log)
	setup := NewSetupHandler(d.Auth, d.Sessions, d.Templates, log)
	dashboards := NewDashboardHandler(d.Users, d.Notes, d.Notices, d.Auth, d.Templates, log)
	admin := NewAdminHandler(d.Auth, d.Templates, log)
	settings := NewSettingsHandler(d.Auth, d.Sessions, log)

	r := mux.NewRouter()
	r.Use(middleware.Recoverer(log), middleware.RequestLogger(log))

	r.HandleFunc("/", index.Index).Methods(http.MethodGet)
	r.HandleFunc("/healthz", HealthHandler(d.DB)).Methods(http.MethodGet)
	r.HandleFunc("/signup", signup.SignupPage).Methods(http.MethodGet)
	r.HandleFunc("/signup", signup.Signup).Methods(http.MethodPost)
	r.HandleFunc("/login", login.LoginPage).Methods(http.MethodGet)
	r.HandleFunc("/login", login.Login).Methods(http.MethodPost)
	r.HandleFunc("/logout", LogoutHandler(d.Sessions, log)).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/setup", setup.SetupPage).Methods(http.MethodGet)
	r.HandleFunc("/setup", setup.Setup).Methods(http.MethodPost)

	student := r.PathPrefix("/student").Subrouter()
	student.Use(guard.RequireRole(entity.RoleStudent))
	student.HandleFunc("", dashboards.StudentHome).Methods(http.MethodGet)

	teacher := r.PathPrefix("/teacher").Subrouter()
	teacher.Use(guard.RequireRole(entity.RoleTeacher))
	teacher.HandleFunc("", dashboards.TeacherHome).Methods(http.MethodGet)

	a := r.PathPrefix("/admin").Subrouter()
	a.Use(guard.RequireRole(entity.RoleAdmin))
	a.HandleFunc("", dashboards.AdminHome).Methods(http.MethodGet)
	a.HandleFunc("/settings", dashboards.Settings).Methods(http.MethodGet)
	a.HandleFunc("/change-email", settings.ChangeEmail).Methods(http.MethodPost)
	a.HandleFunc("/change-password", settings.ChangePassword).Methods(http.MethodPost)
	a.HandleFunc("/add-student", admin.AddStudentPage()).Methods(http.MethodGet)
	a.HandleFunc("/add-student", admin.AddStudent()).Methods(http.MethodPost)
	a.HandleFunc("/add-teacher", admin.AddTeacherPage()).Methods(http.MethodGet)
	a.HandleFunc("/add-teacher", admin.AddTeacher()).Methods(http.MethodPost)
	a.HandleFunc("/edit-student/{id}", admin.EditStudentPage()).Methods(http.MethodGet)
	a.HandleFunc("/edit-student/{id}", admin.EditStudent()).Methods(http.MethodPost)
	a.HandleFunc("/edit-teacher/{id}", admin.EditTeacherPage()).Methods(http.MethodGet)
	a.HandleFunc("/edit-teacher/{id}", admin.EditTeacher()).Methods(http.MethodPost)
	a.HandleFunc("/delete-student/{id}", admin.DeleteStudent()).Methods(http.MethodPost)
	a.HandleFunc("/delete-teacher/{id}", admin.DeleteTeacher()).Methods(http.MethodPost)

	if !d.CSRF.Enabled {
		return r
	}
	return withCSRF(r, d.CSRF, d.Secure, log)
}

func withCSRF(next http.Handler, cfg config.CSRFConfig, secure bool, log *slog.Logger) http.Handler {
	key := []byte(cfg.Key)
	if len(key) != 32 {
		log.Warn("CSRF_KEY is not 32 bytes, using a random key; forms will not survive a restart")
		key = securecookie.GenerateRandomKey(32)
	}
	protect := csrf.Protect(key,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Warn("csrf check failed", "path", r.URL.Path, "reason", csrf.FailureReason(r))
			http.Error(w, "Forbidden - invalid CSRF token", http.StatusForbidden)
		})),
	)(next)
	if secure {
		return protect
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		protect.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
	})
}
