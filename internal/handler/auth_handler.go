package handler

import (
	"log/slog"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/entity"
	"github.com/Niranjjith/Department-portal/internal/session"
)

// redirectToDashboard sends the user to the page for role.
func redirectToDashboard(w http.ResponseWriter, r *http.Request, role entity.Role) {
	path, ok := role.Dashboard()
	if !ok {
		text(w, "Unknown role. Cannot redirect.")
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// LogoutHandler ends the session and returns to the login page.
func LogoutHandler(sessions *session.Manager, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p, ok := sessions.Principal(r); ok {
			log.Info("logout", "user_id", p.UserID)
		}
		if err := sessions.Destroy(w, r); err != nil {
			log.Warn("destroy session", "error", err)
		}
		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
