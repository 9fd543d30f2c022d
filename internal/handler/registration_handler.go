package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/session"
)

// SignupHandler registers students.
type SignupHandler struct {
	auth     *auth.Service
	sessions *session.Manager
	tmpl     *template.Template
	log      *slog.Logger
}

func NewSignupHandler(svc *auth.Service, sessions *session.Manager, tmpl *template.Template, log *slog.Logger) *SignupHandler {
	return &SignupHandler{
		auth:     svc,
		sessions: sessions,
		tmpl:     tmpl,
		log:      log,
	}
}

func (h *SignupHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.sessions.Principal(r); ok {
		redirectToDashboard(w, r, p.Role)
		return
	}
	h.renderForm(w, r, auth.SignupInput{}, "")
}

func (h *SignupHandler) renderForm(w http.ResponseWriter, r *http.Request, form auth.SignupInput, msg string) {
	data := page(r, "Sign up")
	form.Password = ""
	data["Form"] = form
	data["Error"] = msg
	render(w, h.log, h.tmpl, "signup.html", data)
}

func (h *SignupHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad form data", http.StatusBadRequest)
		return
	}
	in := auth.SignupInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Semester: r.PostFormValue("semester"),
	}

	user, err := h.auth.Signup(r.Context(), in)
	var verr *auth.ValidationError
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrAdminEmailReserved):
		text(w, "Admin email is reserved.")
		return
	case errors.Is(err, auth.ErrEmailExists):
		text(w, "User already registered with this email.")
		return
	case errors.As(err, &verr):
		h.renderForm(w, r, in, verr.Error())
		return
	default:
		h.log.Error("signup", "error", err)
		text(w, "Error occurred during signup")
		return
	}

	if err := h.sessions.Establish(w, r, user); err != nil {
		h.log.Error("establish session", "error", err, "user_id", user.ID)
		text(w, "Error occurred during signup")
		return
	}
	http.Redirect(w, r, "/student", http.StatusSeeOther)
}
