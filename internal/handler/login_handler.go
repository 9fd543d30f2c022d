package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/session"
)

type LoginHandler struct {
	auth     *auth.Service
	sessions *session.Manager
	tmpl     *template.Template
	log      *slog.Logger
}

func NewLoginHandler(svc *auth.Service, sessions *session.Manager, tmpl *template.Template, log *slog.Logger) *LoginHandler {
	return &LoginHandler{
		auth:     svc,
		sessions: sessions,
		tmpl:     tmpl,
		log:      log,
	}
}

func (h *LoginHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.sessions.Principal(r); ok {
		redirectToDashboard(w, r, p.Role)
		return
	}
	h.renderForm(w, r, "", "")
}

func (h *LoginHandler) renderForm(w http.ResponseWriter, r *http.Request, email, msg string) {
	data := page(r, "Login")
	data["Email"] = email
	data["Error"] = msg
	render(w, h.log, h.tmpl, "login.html", data)
}

func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad form data", http.StatusBadRequest)
		return
	}
	email := r.PostFormValue("email")

	user, err := h.auth.Login(r.Context(), email, r.PostFormValue("password"))
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.log.Info("login failed", "email", email)
		h.renderForm(w, r, email, "Email or password is incorrect.")
		return
	}
	if err != nil {
		h.log.Error("login", "error", err, "path", r.URL.Path)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if err := h.sessions.Establish(w, r, user); err != nil {
		h.log.Error("establish session", "error", err, "user_id", user.ID)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	h.log.Info("login", "user_id", user.ID, "role", user.Role)
	redirectToDashboard(w, r, user.Role)
}
