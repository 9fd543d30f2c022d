package handler

import "net/http"

func (h *DashboardHandler) TeacherHome(w http.ResponseWriter, r *http.Request) {
	render(w, h.log, h.tmpl, "teacher_dashboard.html", page(r, "Teacher dashboard"))
}
