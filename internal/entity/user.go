package entity

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// dashboards maps every known role to the page it lands on after login.
var dashboards = map[Role]string{
	RoleStudent: "/student",
	RoleTeacher: "/teacher",
	RoleAdmin:   "/admin",
}

// Dashboard returns the landing path for the role, false for unknown roles.
func (r Role) Dashboard() (string, bool) {
	path, ok := dashboards[r]
	return path, ok
}

func (r Role) Valid() bool {
	_, ok := dashboards[r]
	return ok
}

// Semesters lists the semester codes a student can belong to.
var Semesters = []string{"1", "2", "3", "4", "5", "6"}

func ValidSemester(s string) bool {
	for _, value := range Semesters {
		if s == value {
			return true
		}
	}
	return false
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Semester     string    `json:"semester,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// NormalizeEmail trims and lower-cases an address so lookups and the
// uniqueness constraint agree.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
