package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/session"
)

// SettingsHandler serves the admin credential-change endpoints. Both reply
// with {success, message} and status 200.
type SettingsHandler struct {
	auth     *auth.Service
	sessions *session.Manager
	log      *slog.Logger
}

func NewSettingsHandler(svc *auth.Service, sessions *session.Manager, log *slog.Logger) *SettingsHandler {
	return &SettingsHandler{auth: svc, sessions: sessions, log: log}
}

var settingsMessages = map[error]string{
	auth.ErrFieldsRequired:   "All fields are required",
	auth.ErrWrongPassword:    "Current password is incorrect",
	auth.ErrEmailInUse:       "Email already in use",
	auth.ErrPasswordMismatch: "New passwords do not match",
	auth.ErrPasswordTooShort: "Password must be at least 6 characters",
}

// settingsMessage maps expected failures to their user-facing message.
func settingsMessage(err error) (string, bool) {
	for target, msg := range settingsMessages {
		if errors.Is(err, target) {
			return msg, true
		}
	}
	return "", false
}

func (h *SettingsHandler) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, result{Message: "Error updating email"})
		return
	}

	admin, err := h.auth.ChangeEmail(r.Context(), r.PostFormValue("newEmail"), r.PostFormValue("currentPassword"))
	if err != nil {
		msg, ok := settingsMessage(err)
		if !ok {
			h.log.Error("change admin email", "error", err)
			msg = "Error updating email"
		}
		writeJSON(w, http.StatusOK, result{Message: msg})
		return
	}

	if err := h.sessions.Establish(w, r, admin); err != nil {
		h.log.Error("refresh session", "error", err, "user_id", admin.ID)
	}
	writeJSON(w, http.StatusOK, result{Success: true, Message: "Email updated successfully"})
}

func (h *SettingsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusOK, result{Message: "Error updating password"})
		return
	}

	_, err := h.auth.ChangePassword(r.Context(), auth.ChangePasswordInput{
		CurrentPassword: r.PostFormValue("currentPassword"),
		NewPassword:     r.PostFormValue("newPassword"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	})
	if err != nil {
		msg, ok := settingsMessage(err)
		if !ok {
			h.log.Error("change admin password", "error", err)
			msg = "Error updating password"
		}
		writeJSON(w, http.StatusOK, result{Message: msg})
		return
	}
	writeJSON(w, http.StatusOK, result{Success: true, Message: "Password updated successfully"})
}
