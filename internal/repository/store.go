package repository

import (
	"context"
	"errors"

	"github.com/Niranjjith/Department-portal/internal/entity"
)

var (
	ErrNotFound    = errors.New("user not found")
	ErrEmailExists = errors.New("a user with this email already exists")
	ErrAdminExists = errors.New("an admin user already exists")
)

// UserFilter narrows List. Zero values match everything.
type UserFilter struct {
	Role     entity.Role
	Semester string
}

// UserStore persists portal accounts. Implementations enforce email
// uniqueness and allow at most one admin record.
type UserStore interface {
	Create(ctx context.Context, user entity.User) (entity.User, error)
	// CreateAdminIfAbsent inserts user as the admin unless one exists, in
	// which case the existing admin is returned with created=false.
	CreateAdminIfAbsent(ctx context.Context, user entity.User) (admin entity.User, created bool, err error)
	GetByID(ctx context.Context, id string) (entity.User, error)
	GetByEmail(ctx context.Context, email string) (entity.User, error)
	GetAdmin(ctx context.Context) (entity.User, error)
	List(ctx context.Context, filter UserFilter) ([]entity.User, error)
	Count(ctx context.Context, role entity.Role) (int, error)
	SemesterCounts(ctx context.Context) (map[string]int, error)
	Update(ctx context.Context, user entity.User) (entity.User, error)
	// Delete removes the user only if it currently holds role.
	Delete(ctx context.Context, id string, role entity.Role) error
}

type NoteStore interface {
	ListNotesBySemester(ctx context.Context, semester string) ([]entity.Note, error)
}

type NoticeStore interface {
	ListNotices(ctx context.Context) ([]entity.Notice, error)
}

// semesterKey is the bucket a student without a semester is counted under.
func semesterKey(semester string) string {
	if semester == "" {
		return "N/A"
	}
	return semester
}
