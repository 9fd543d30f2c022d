package handler

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/middleware"
	"github.com/Niranjjith/Department-portal/internal/repository"
)

// DashboardHandler renders the per-role landing pages. Every method runs
// behind RequireRole, so the current user is always in the context.
type DashboardHandler struct {
	users   repository.UserStore
	notes   repository.NoteStore
	notices repository.NoticeStore
	auth    *auth.Service
	tmpl    *template.Template
	log     *slog.Logger
}

func NewDashboardHandler(
	users repository.UserStore,
	notes repository.NoteStore,
	notices repository.NoticeStore,
	svc *auth.Service,
	tmpl *template.Template,
	log *slog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		users:   users,
		notes:   notes,
		notices: notices,
		auth:    svc,
		tmpl:    tmpl,
		log:     log,
	}
}

// StudentHome lists the notes of the student's semester and all notices.
func (h *DashboardHandler) StudentHome(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.CurrentUser(r.Context())

	notes, err := h.notes.ListNotesBySemester(r.Context(), user.Semester)
	if err != nil {
		h.log.Error("list notes", "error", err, "semester", user.Semester)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	notices, err := h.notices.ListNotices(r.Context())
	if err != nil {
		h.log.Error("list notices", "error", err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}

	data := page(r, "Student dashboard")
	data["Notes"] = notes
	data["Notices"] = notices
	render(w, h.log, h.tmpl, "student_dashboard.html", data)
}
