package handler

import (
	"errors"
	"net/http"

	"github.com/Niranjjith/Department-portal/internal/entity"
	"github.com/Niranjjith/Department-portal/internal/middleware"
	"github.com/Niranjjith/Department-portal/internal/repository"
)

// adminInfo picks the identity shown on admin pages: the stored admin, else
// the signed-in user, else the reserved identity.
func (h *DashboardHandler) adminInfo(r *http.Request) (entity.User, error) {
	admin, err := h.users.GetAdmin(r.Context())
	if err == nil {
		return admin, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return entity.User{}, err
	}
	if user, ok := middleware.CurrentUser(r.Context()); ok {
		return user, nil
	}
	return h.auth.ReservedAdmin(), nil
}

// AdminHome shows students (optionally of one semester), teachers and
// head counts.
func (h *DashboardHandler) AdminHome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	selected := r.URL.Query().Get("semester")

	filter := repository.UserFilter{Role: entity.RoleStudent}
	if entity.ValidSemester(selected) {
		filter.Semester = selected
	}
	students, err := h.users.List(ctx, filter)
	if err != nil {
		h.serverError(w, r, "list students", err)
		return
	}
	teachers, err := h.users.List(ctx, repository.UserFilter{Role: entity.RoleTeacher})
	if err != nil {
		h.serverError(w, r, "list teachers", err)
		return
	}
	totalStudents, err := h.users.Count(ctx, entity.RoleStudent)
	if err != nil {
		h.serverError(w, r, "count students", err)
		return
	}
	semesterCounts, err := h.users.SemesterCounts(ctx)
	if err != nil {
		h.serverError(w, r, "count semesters", err)
		return
	}
	info, err := h.adminInfo(r)
	if err != nil {
		h.serverError(w, r, "load admin", err)
		return
	}

	data := page(r, "Admin dashboard")
	data["Students"] = students
	data["Teachers"] = teachers
	data["TotalStudents"] = totalStudents
	data["TotalTeachers"] = len(teachers)
	data["SemesterCounts"] = semesterCounts
	data["SelectedSemester"] = selected
	data["AdminInfo"] = info
	data["ShowSettings"] = false
	render(w, h.log, h.tmpl, "admin_dashboard.html", data)
}

// Settings renders the admin dashboard in credential-settings mode.
func (h *DashboardHandler) Settings(w http.ResponseWriter, r *http.Request) {
	admin, err := h.users.GetAdmin(r.Context())
	if errors.Is(err, repository.ErrNotFound) {
		admin, err = h.auth.ReservedAdmin(), nil
	}
	if err != nil {
		h.log.Error("load admin", "error", err)
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}

	data := page(r, "Settings")
	data["Students"] = []entity.User{}
	data["Teachers"] = []entity.User{}
	data["TotalStudents"] = 0
	data["TotalTeachers"] = 0
	data["SemesterCounts"] = map[string]int{}
	data["SelectedSemester"] = ""
	data["AdminInfo"] = admin
	data["ShowSettings"] = true
	render(w, h.log, h.tmpl, "admin_dashboard.html", data)
}

func (h *DashboardHandler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.log.Error(op, "error", err, "path", r.URL.Path)
	http.Error(w, "Server error", http.StatusInternalServerError)
}
