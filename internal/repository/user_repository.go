package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/Niranjjith/Department-portal/internal/entity"
)

const (
	uniqueViolation   = "23505"
	singleAdminIndex  = "users_single_admin"
	selectUserColumns = `id, name, email, password_hash, role, COALESCE(semester, ''), created_at, updated_at`
)

// UserRepository is the Postgres UserStore.
type UserRepository struct {
	db *sql.DB
}

var _ UserStore = (*UserRepository)(nil)

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (entity.User, error) {
	var u entity.User
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Semester, &u.CreatedAt, &u.UpdatedAt)
	u.Role = entity.Role(role)
	return u, err
}

// classify maps driver errors onto the package sentinels.
func classify(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		if pqErr.Constraint == singleAdminIndex {
			return ErrAdminExists
		}
		return ErrEmailExists
	}
	return errors.Wrap(err, op)
}

// prepareNew assigns the identity and timestamps of a new record.
func prepareNew(u entity.User, now time.Time) entity.User {
	u.ID = uuid.NewString()
	u.Email = entity.NormalizeEmail(u.Email)
	if u.Role != entity.RoleStudent {
		u.Semester = ""
	}
	u.CreatedAt = now
	u.UpdatedAt = now
	return u
}

const insertUser = `
	INSERT INTO users (id, name, email, password_hash, role, semester, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
`

func (r *UserRepository) Create(ctx context.Context, user entity.User) (entity.User, error) {
	u := prepareNew(user, time.Now().UTC())
	_, err := r.db.ExecContext(ctx, insertUser,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Semester, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return entity.User{}, classify(err, "create user")
	}
	return u, nil
}

func (r *UserRepository) CreateAdminIfAbsent(ctx context.Context, user entity.User) (entity.User, bool, error) {
	user.Role = entity.RoleAdmin
	u := prepareNew(user, time.Now().UTC())

	res, err := r.db.ExecContext(ctx, insertUser+` ON CONFLICT DO NOTHING`,
		u.ID, u.Name, u.Email, u.PasswordHash, string(u.Role), u.Semester, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return entity.User{}, false, classify(err, "create admin")
	}
	if n, err := res.RowsAffected(); err != nil {
		return entity.User{}, false, errors.Wrap(err, "create admin rows affected")
	} else if n == 1 {
		return u, true, nil
	}

	admin, err := r.GetAdmin(ctx)
	if errors.Is(err, ErrNotFound) {
		// The conflict was on the email index, not on the admin slot.
		return entity.User{}, false, ErrEmailExists
	}
	if err != nil {
		return entity.User{}, false, err
	}
	return admin, false, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (entity.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return entity.User{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+selectUserColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return entity.User{}, classify(err, "get user by id")
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (entity.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectUserColumns+` FROM users WHERE email = $1`,
		entity.NormalizeEmail(email))
	u, err := scanUser(row)
	if err != nil {
		return entity.User{}, classify(err, "get user by email")
	}
	return u, nil
}

func (r *UserRepository) GetAdmin(ctx context.Context) (entity.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectUserColumns+` FROM users WHERE role = $1 LIMIT 1`,
		string(entity.RoleAdmin))
	u, err := scanUser(row)
	if err != nil {
		return entity.User{}, classify(err, "get admin")
	}
	return u, nil
}

func (r *UserRepository) List(ctx context.Context, filter UserFilter) ([]entity.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+selectUserColumns+`
		FROM users
		WHERE ($1 = '' OR role = $1)
		  AND ($2 = '' OR semester = $2)
		ORDER BY name, email
	`, string(filter.Role), filter.Semester)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	defer rows.Close()

	users := make([]entity.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan user")
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

func (r *UserRepository) Count(ctx context.Context, role entity.Role) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = $1`, string(role)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "count users")
	}
	return n, nil
}

func (r *UserRepository) SemesterCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT COALESCE(semester, ''), COUNT(*)
		FROM users
		WHERE role = $1
		GROUP BY COALESCE(semester, '')
	`, string(entity.RoleStudent))
	if err != nil {
		return nil, errors.Wrap(err, "semester counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var semester string
		var n int
		if err := rows.Scan(&semester, &n); err != nil {
			return nil, errors.Wrap(err, "scan semester count")
		}
		counts[semesterKey(semester)] += n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "semester counts")
	}
	return counts, nil
}

func (r *UserRepository) Update(ctx context.Context, user entity.User) (entity.User, error) {
	if _, err := uuid.Parse(user.ID); err != nil {
		return entity.User{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET name = $2,
			email = $3,
			password_hash = $4,
			semester = CASE WHEN role = 'student' THEN NULLIF($5, '') ELSE NULL END,
			updated_at = $6
		WHERE id = $1
		RETURNING `+selectUserColumns,
		user.ID, user.Name, entity.NormalizeEmail(user.Email), user.PasswordHash, user.Semester, time.Now().UTC())
	u, err := scanUser(row)
	if err != nil {
		return entity.User{}, classify(err, "update user")
	}
	return u, nil
}

func (r *UserRepository) Delete(ctx context.Context, id string, role entity.Role) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1 AND role = $2`, id, string(role))
	if err != nil {
		return errors.Wrap(err, "delete user")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "delete user rows affected")
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
