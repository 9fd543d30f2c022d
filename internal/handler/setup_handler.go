package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/session"
)

// SetupHandler provisions the first admin from a setup token.
type SetupHandler struct {
	auth     *auth.Service
	sessions *session.Manager
	tmpl     *template.Template
	log      *slog.Logger
}

func NewSetupHandler(svc *auth.Service, sessions *session.Manager, tmpl *template.Template, log *slog.Logger) *SetupHandler {
	return &SetupHandler{auth: svc, sessions: sessions, tmpl: tmpl, log: log}
}

// guard writes the response and returns false when setup cannot proceed.
func (h *SetupHandler) guard(w http.ResponseWriter, r *http.Request, token string) bool {
	required, err := h.auth.SetupRequired(r.Context())
	if err != nil {
		h.log.Error("check setup", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return false
	}
	if !required {
		text(w, "Setup has already been completed.")
		return false
	}
	if err := h.auth.CheckSetupToken(token); err != nil {
		http.Error(w, "Invalid or expired setup token.", http.StatusForbidden)
		return false
	}
	return true
}

func (h *SetupHandler) renderForm(w http.ResponseWriter, r *http.Request, token string, form auth.SetupInput, msg string) {
	data := page(r, "Setup")
	form.Password, form.ConfirmPassword = "", ""
	data["Token"] = token
	data["Form"] = form
	data["Error"] = msg
	render(w, h.log, h.tmpl, "setup.html", data)
}

func (h *SetupHandler) SetupPage(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if !h.guard(w, r, token) {
		return
	}
	h.renderForm(w, r, token, auth.SetupInput{}, "")
}

func (h *SetupHandler) Setup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad form data", http.StatusBadRequest)
		return
	}
	token := r.PostFormValue("token")
	if !h.guard(w, r, token) {
		return
	}
	in := auth.SetupInput{
		Name:            r.PostFormValue("name"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	admin, err := h.auth.ProvisionAdmin(r.Context(), token, in)
	var verr *auth.ValidationError
	switch {
	case err == nil:
	case errors.As(err, &verr):
		h.renderForm(w, r, token, in, verr.Error())
		return
	case errors.Is(err, auth.ErrSetupCompleted):
		text(w, "Setup has already been completed.")
		return
	case errors.Is(err, auth.ErrInvalidSetupToken):
		http.Error(w, "Invalid or expired setup token.", http.StatusForbidden)
		return
	default:
		h.log.Error("provision admin", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	if err := h.sessions.Establish(w, r, admin); err != nil {
		h.log.Error("establish session", "error", err, "user_id", admin.ID)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}
