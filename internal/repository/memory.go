package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Niranjjith/Department-portal/internal/entity"
)

// MemoryUserRepository is an in-process UserStore used by tests and by
// DB_DRIVER=memory. Every operation runs under one lock, which gives it the
// same uniqueness guarantees as the Postgres indexes.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]entity.User
	now   func() time.Time
}

var _ UserStore = (*MemoryUserRepository)(nil)

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[string]entity.User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// emailTaken reports whether another record already uses email. Callers hold the lock.
func (r *MemoryUserRepository) emailTaken(email, exceptID string) bool {
	for id, u := range r.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

func (r *MemoryUserRepository) admin() (entity.User, bool) {
	for _, u := range r.users {
		if u.Role == entity.RoleAdmin {
			return u, true
		}
	}
	return entity.User{}, false
}

func (r *MemoryUserRepository) Create(_ context.Context, user entity.User) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u := prepareNew(user, r.now())
	if r.emailTaken(u.Email, "") {
		return entity.User{}, ErrEmailExists
	}
	if _, ok := r.admin(); ok && u.Role == entity.RoleAdmin {
		return entity.User{}, ErrAdminExists
	}
	r.users[u.ID] = u
	return u, nil
}

func (r *MemoryUserRepository) CreateAdminIfAbsent(_ context.Context, user entity.User) (entity.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if admin, ok := r.admin(); ok {
		return admin, false, nil
	}
	user.Role = entity.RoleAdmin
	u := prepareNew(user, r.now())
	if r.emailTaken(u.Email, "") {
		return entity.User{}, false, ErrEmailExists
	}
	r.users[u.ID] = u
	return u, true, nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return entity.User{}, ErrNotFound
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	email = entity.NormalizeEmail(email)
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return entity.User{}, ErrNotFound
}

func (r *MemoryUserRepository) GetAdmin(_ context.Context) (entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, ok := r.admin(); ok {
		return u, nil
	}
	return entity.User{}, ErrNotFound
}

func (r *MemoryUserRepository) List(_ context.Context, filter UserFilter) ([]entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]entity.User, 0, len(r.users))
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Semester != "" && u.Semester != filter.Semester {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].Email < users[j].Email
	})
	return users, nil
}

func (r *MemoryUserRepository) Count(_ context.Context, role entity.Role) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func (r *MemoryUserRepository) SemesterCounts(_ context.Context) (map[string]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[string]int)
	for _, u := range r.users {
		if u.Role == entity.RoleStudent {
			counts[semesterKey(u.Semester)]++
		}
	}
	return counts, nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user entity.User) (entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orig, ok := r.users[user.ID]
	if !ok {
		return entity.User{}, ErrNotFound
	}
	email := entity.NormalizeEmail(user.Email)
	if r.emailTaken(email, orig.ID) {
		return entity.User{}, ErrEmailExists
	}

	orig.Name = user.Name
	orig.Email = email
	orig.PasswordHash = user.PasswordHash
	if orig.Role == entity.RoleStudent {
		orig.Semester = user.Semester
	}
	orig.UpdatedAt = r.now()
	r.users[orig.ID] = orig
	return orig, nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string, role entity.Role) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.Role != role {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// MemoryDocumentRepository holds notes and notices in process.
type MemoryDocumentRepository struct {
	mu      sync.RWMutex
	notes   []entity.Note
	notices []entity.Notice
}

var (
	_ NoteStore   = (*MemoryDocumentRepository)(nil)
	_ NoticeStore = (*MemoryDocumentRepository)(nil)
)

func NewMemoryDocumentRepository() *MemoryDocumentRepository {
	return &MemoryDocumentRepository{}
}

func (r *MemoryDocumentRepository) AddNote(note entity.Note) entity.Note {
	r.mu.Lock()
	defer r.mu.Unlock()

	note.ID = len(r.notes) + 1
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	r.notes = append(r.notes, note)
	return note
}

func (r *MemoryDocumentRepository) AddNotice(notice entity.Notice) entity.Notice {
	r.mu.Lock()
	defer r.mu.Unlock()

	notice.ID = len(r.notices) + 1
	if notice.CreatedAt.IsZero() {
		notice.CreatedAt = time.Now().UTC()
	}
	r.notices = append(r.notices, notice)
	return notice
}

func (r *MemoryDocumentRepository) ListNotesBySemester(_ context.Context, semester string) ([]entity.Note, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]entity.Note, 0)
	for i := len(r.notes) - 1; i >= 0; i-- {
		if r.notes[i].Semester == semester {
			notes = append(notes, r.notes[i])
		}
	}
	return notes, nil
}

func (r *MemoryDocumentRepository) ListNotices(_ context.Context) ([]entity.Notice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notices := make([]entity.Notice, 0, len(r.notices))
	for i := len(r.notices) - 1; i >= 0; i-- {
		notices = append(notices, r.notices[i])
	}
	return notices, nil
}
