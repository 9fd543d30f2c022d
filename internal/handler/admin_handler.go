package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Niranjjith/Department-portal/internal/auth"
	"github.com/Niranjjith/Department-portal/internal/entity"
)

// AdminHandler manages student and teacher accounts.
type AdminHandler struct {
	auth *auth.Service
	tmpl *template.Template
	log  *slog.Logger
}

func NewAdminHandler(svc *auth.Service, tmpl *template.Template, log *slog.Logger) *AdminHandler {
	return &AdminHandler{auth: svc, tmpl: tmpl, log: log}
}

// member describes one manageable role: its templates and messages.
type member struct {
	role     entity.Role
	addPage  string
	editPage string
	key      string
	title    string
}

var (
	studentMember = member{entity.RoleStudent, "add_student.html", "edit_student.html", "Student", "student"}
	teacherMember = member{entity.RoleTeacher, "add_teacher.html", "edit_teacher.html", "Teacher", "teacher"}
)

func accountForm(r *http.Request) auth.AccountInput {
	return auth.AccountInput{
		Name:     r.PostFormValue("name"),
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
		Semester: r.PostFormValue("semester"),
	}
}

func (h *AdminHandler) addPage(m member) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, h.log, h.tmpl, m.addPage, page(r, "Add "+m.title))
	}
}

func (h *AdminHandler) add(m member) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad form data", http.StatusBadRequest)
			return
		}
		_, err := h.auth.CreateAccount(r.Context(), m.role, accountForm(r))
		switch {
		case err == nil:
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
		case errors.Is(err, auth.ErrEmailExists):
			text(w, "User with this email already exists.")
		default:
			h.log.Warn("add account", "role", m.role, "error", err)
			text(w, "Error adding "+m.title)
		}
	}
}

func (h *AdminHandler) editPage(m member) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := h.auth.GetAccount(r.Context(), mux.Vars(r)["id"], m.role)
		if err != nil {
			if !errors.Is(err, auth.ErrNotFound) {
				h.log.Error("load account", "error", err)
			}
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		data := page(r, "Edit "+m.title)
		data[m.key] = user
		render(w, h.log, h.tmpl, m.editPage, data)
	}
}

func (h *AdminHandler) edit(m member) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad form data", http.StatusBadRequest)
			return
		}
		in := accountForm(r)
		in.Password = ""

		_, err := h.auth.UpdateAccount(r.Context(), mux.Vars(r)["id"], m.role, in)
		var verr *auth.ValidationError
		switch {
		case err == nil, errors.Is(err, auth.ErrNotFound):
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
		case errors.Is(err, auth.ErrEmailExists):
			text(w, "User with this email already exists.")
		case errors.As(err, &verr):
			text(w, verr.Error())
		default:
			h.log.Error("update account", "role", m.role, "error", err)
			text(w, "Error updating "+m.title)
		}
	}
}

func (h *AdminHandler) remove(m member) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.auth.DeleteAccount(r.Context(), mux.Vars(r)["id"], m.role)
		if err != nil && !errors.Is(err, auth.ErrNotFound) {
			h.log.Error("delete account", "role", m.role, "error", err)
		}
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
	}
}

func (h *AdminHandler) AddStudentPage() http.HandlerFunc  { return h.addPage(studentMember) }
func (h *AdminHandler) AddStudent() http.HandlerFunc      { return h.add(studentMember) }
func (h *AdminHandler) EditStudentPage() http.HandlerFunc { return h.editPage(studentMember) }
func (h *AdminHandler) EditStudent() http.HandlerFunc     { return h.edit(studentMember) }
func (h *AdminHandler) DeleteStudent() http.HandlerFunc   { return h.remove(studentMember) }

func (h *AdminHandler) AddTeacherPage() http.HandlerFunc  { return h.addPage(teacherMember) }
func (h *AdminHandler) AddTeacher() http.HandlerFunc      { return h.add(teacherMember) }
func (h *AdminHandler) EditTeacherPage() http.HandlerFunc { return h.editPage(teacherMember) }
func (h *AdminHandler) EditTeacher() http.HandlerFunc     { return h.edit(teacherMember) }
func (h *AdminHandler) DeleteTeacher() http.HandlerFunc   { return h.remove(teacherMember) }
