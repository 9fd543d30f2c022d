package auth

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/pkg/errors"

	"github.com/Niranjjith/Department-portal/internal/config"
	"github.com/Niranjjith/Department-portal/internal/entity"
	"github.com/Niranjjith/Department-portal/internal/repository"
)

// Service authenticates principals and owns every write that touches
// credentials.
type Service struct {
	users    repository.UserStore
	cfg      config.AuthConfig
	setupKey []byte
	log      *slog.Logger
	now      func() time.Time
}

func NewService(users repository.UserStore, cfg config.AuthConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	key := []byte(cfg.SetupSecret)
	if len(key) == 0 {
		// Without a secret, setup tokens are valid until restart.
		key = securecookie.GenerateRandomKey(32)
	}
	return &Service{
		users:    users,
		cfg:      cfg,
		setupKey: key,
		log:      logger,
		now:      time.Now,
	}
}

// ReservedAdmin is the identity shown when no admin record exists yet.
func (s *Service) ReservedAdmin() entity.User {
	return entity.User{Name: s.cfg.AdminName, Email: s.cfg.AdminEmail, Role: entity.RoleAdmin}
}

type SignupInput struct {
	Name     string `form:"name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
	Semester string `form:"semester" validate:"required,oneof=1 2 3 4 5 6"`
}

// Signup registers a student. The reserved admin address and the current
// admin's address can never be claimed.
func (s *Service) Signup(ctx context.Context, in SignupInput) (entity.User, error) {
	in.Email = entity.NormalizeEmail(in.Email)

	reserved, err := s.isAdminEmail(ctx, in.Email)
	if err != nil {
		return entity.User{}, err
	}
	if reserved {
		return entity.User{}, ErrAdminEmailReserved
	}
	if _, err := s.users.GetByEmail(ctx, in.Email); err == nil {
		return entity.User{}, ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return entity.User{}, err
	}
	if err := validateStruct(in); err != nil {
		return entity.User{}, err
	}

	user, err := s.create(ctx, entity.User{
		Name:     in.Name,
		Email:    in.Email,
		Role:     entity.RoleStudent,
		Semester: in.Semester,
	}, in.Password)
	if err != nil {
		return entity.User{}, err
	}
	s.log.Info("student signed up", "user_id", user.ID, "semester", user.Semester)
	return user, nil
}

func (s *Service) isAdminEmail(ctx context.Context, email string) (bool, error) {
	if email == s.cfg.AdminEmail {
		return true, nil
	}
	admin, err := s.users.GetAdmin(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return admin.Email == email, nil
}

// create hashes password and inserts u. A concurrent insert of the same
// email surfaces as ErrEmailExists through the store's unique constraint.
func (s *Service) create(ctx context.Context, u entity.User, password string) (entity.User, error) {
	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return entity.User{}, errors.Wrap(err, "hash password")
	}
	u.PasswordHash = hash
	return s.users.Create(ctx, u)
}

// Login authenticates email/password. Precedence: a stored admin with a
// matching password, then the reserved admin pair while no admin record
// exists (bootstrapping that record), then any stored user.
func (s *Service) Login(ctx context.Context, email, password string) (entity.User, error) {
	email = entity.NormalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	found := err == nil
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return entity.User{}, err
	}

	if found && user.IsAdmin() && CheckPassword(user.PasswordHash, password) == nil {
		return user, nil
	}

	if s.isReservedPair(email, password) {
		admin, ok, err := s.bootstrapAdmin(ctx, password)
		if err != nil {
			return entity.User{}, err
		}
		if ok {
			return admin, nil
		}
	}

	if found && CheckPassword(user.PasswordHash, password) == nil {
		return user, nil
	}
	return entity.User{}, ErrInvalidCredentials
}

func (s *Service) isReservedPair(email, password string) bool {
	if !s.cfg.LegacyFallback || s.cfg.AdminPassword == "" {
		return false
	}
	return email == s.cfg.AdminEmail &&
		subtle.ConstantTimeCompare([]byte(password), []byte(s.cfg.AdminPassword)) == 1
}

// bootstrapAdmin creates the admin record from the reserved pair. Once an
// admin exists the pair only works if it still matches that record, so a
// changed email or password closes it.
func (s *Service) bootstrapAdmin(ctx context.Context, password string) (entity.User, bool, error) {
	admin, exists, err := s.currentAdmin(ctx)
	if err != nil {
		return entity.User{}, false, err
	}
	if exists {
		return admin, s.ownsReservedPair(admin, password), nil
	}

	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return entity.User{}, false, errors.Wrap(err, "hash password")
	}
	admin, created, err := s.users.CreateAdminIfAbsent(ctx, entity.User{
		Name:         s.cfg.AdminName,
		Email:        s.cfg.AdminEmail,
		PasswordHash: hash,
	})
	if errors.Is(err, repository.ErrEmailExists) {
		s.log.Warn("reserved admin email belongs to a non-admin account, bootstrap skipped", "email", s.cfg.AdminEmail)
		return entity.User{}, false, nil
	}
	if err != nil {
		return entity.User{}, false, err
	}
	if !created {
		// Another request won the race.
		return admin, s.ownsReservedPair(admin, password), nil
	}
	s.log.Info("admin account bootstrapped from reserved credentials", "user_id", admin.ID)
	return admin, true, nil
}

func (s *Service) ownsReservedPair(admin entity.User, password string) bool {
	return admin.Email == s.cfg.AdminEmail && CheckPassword(admin.PasswordHash, password) == nil
}

// currentAdmin returns the admin record and whether it exists.
func (s *Service) currentAdmin(ctx context.Context) (entity.User, bool, error) {
	admin, err := s.users.GetAdmin(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return entity.User{}, false, nil
	}
	if err != nil {
		return entity.User{}, false, err
	}
	return admin, true, nil
}

// verifyAdminPassword checks password against the admin record, or against
// the reserved password when there is no record yet.
func (s *Service) verifyAdminPassword(admin entity.User, exists bool, password string) bool {
	if exists {
		return CheckPassword(admin.PasswordHash, password) == nil
	}
	return s.isReservedPair(s.cfg.AdminEmail, password)
}

// ChangeEmail moves the admin account to newEmail after confirming the
// current password. The returned user is the updated admin record.
func (s *Service) ChangeEmail(ctx context.Context, newEmail, currentPassword string) (entity.User, error) {
	newEmail = entity.NormalizeEmail(newEmail)
	if newEmail == "" || currentPassword == "" {
		return entity.User{}, ErrFieldsRequired
	}

	admin, exists, err := s.currentAdmin(ctx)
	if err != nil {
		return entity.User{}, err
	}
	if !s.verifyAdminPassword(admin, exists, currentPassword) {
		return entity.User{}, ErrWrongPassword
	}

	if other, err := s.users.GetByEmail(ctx, newEmail); err == nil && !other.IsAdmin() {
		return entity.User{}, ErrEmailInUse
	} else if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return entity.User{}, err
	}

	if exists {
		admin.Email = newEmail
		updated, err := s.users.Update(ctx, admin)
		if errors.Is(err, repository.ErrEmailExists) {
			return entity.User{}, ErrEmailInUse
		}
		if err != nil {
			return entity.User{}, err
		}
		s.log.Info("admin email changed", "user_id", updated.ID)
		return updated, nil
	}

	hash, err := HashPassword(currentPassword, s.cfg.BcryptCost)
	if err != nil {
		return entity.User{}, errors.Wrap(err, "hash password")
	}
	created, ok, err := s.users.CreateAdminIfAbsent(ctx, entity.User{
		Name:         s.cfg.AdminName,
		Email:        newEmail,
		PasswordHash: hash,
	})
	if errors.Is(err, repository.ErrEmailExists) {
		return entity.User{}, ErrEmailInUse
	}
	if err != nil {
		return entity.User{}, err
	}
	if !ok {
		return entity.User{}, errors.New("admin account was created concurrently")
	}
	s.log.Info("admin account created by email change", "user_id", created.ID)
	return created, nil
}

type ChangePasswordInput struct {
	CurrentPassword string `form:"currentPassword" validate:"required"`
	NewPassword     string `form:"newPassword" validate:"required,min=6"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=NewPassword"`
}

// ChangePassword replaces the admin password after confirming the current
// one.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) (entity.User, error) {
	if err := validateStruct(in); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return entity.User{}, err
		}
		switch {
		case verr.has("required"):
			return entity.User{}, ErrFieldsRequired
		case verr.has("eqfield"):
			return entity.User{}, ErrPasswordMismatch
		default:
			return entity.User{}, ErrPasswordTooShort
		}
	}

	admin, exists, err := s.currentAdmin(ctx)
	if err != nil {
		return entity.User{}, err
	}
	if !s.verifyAdminPassword(admin, exists, in.CurrentPassword) {
		return entity.User{}, ErrWrongPassword
	}

	hash, err := HashPassword(in.NewPassword, s.cfg.BcryptCost)
	if err != nil {
		return entity.User{}, errors.Wrap(err, "hash password")
	}

	if exists {
		admin.PasswordHash = hash
		updated, err := s.users.Update(ctx, admin)
		if err != nil {
			return entity.User{}, err
		}
		s.log.Info("admin password changed", "user_id", updated.ID)
		return updated, nil
	}

	created, ok, err := s.users.CreateAdminIfAbsent(ctx, entity.User{
		Name:         s.cfg.AdminName,
		Email:        s.cfg.AdminEmail,
		PasswordHash: hash,
	})
	if err != nil {
		return entity.User{}, err
	}
	if !ok {
		return entity.User{}, errors.New("admin account was created concurrently")
	}
	s.log.Info("admin account created by password change", "user_id", created.ID)
	return created, nil
}

// AccountInput is the admin form for creating or editing a student or
// teacher.
type AccountInput struct {
	Name     string `form:"name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password"`
	Semester string `form:"semester"`
}

func checkMemberRole(role entity.Role) error {
	if role != entity.RoleStudent && role != entity.RoleTeacher {
		return errors.Errorf("accounts with role %q cannot be managed", role)
	}
	return nil
}

func validateAccount(role entity.Role, in AccountInput, requirePassword bool) error {
	if err := validateStruct(in); err != nil {
		return err
	}
	var fields []FieldError
	if requirePassword && in.Password == "" {
		fields = append(fields, FieldError{Field: "password", Tag: "required", Error: "password is required"})
	}
	if role == entity.RoleStudent && !entity.ValidSemester(in.Semester) {
		fields = append(fields, FieldError{Field: "semester", Tag: "oneof", Error: "semester must be one of 1 2 3 4 5 6"})
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// CreateAccount adds a student or teacher on behalf of an admin.
func (s *Service) CreateAccount(ctx context.Context, role entity.Role, in AccountInput) (entity.User, error) {
	if err := checkMemberRole(role); err != nil {
		return entity.User{}, err
	}
	in.Email = entity.NormalizeEmail(in.Email)
	if err := validateAccount(role, in, true); err != nil {
		return entity.User{}, err
	}

	user, err := s.create(ctx, entity.User{
		Name:     in.Name,
		Email:    in.Email,
		Role:     role,
		Semester: in.Semester,
	}, in.Password)
	if err != nil {
		return entity.User{}, err
	}
	s.log.Info("account created", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// GetAccount returns the user with id only if it holds role.
func (s *Service) GetAccount(ctx context.Context, id string, role entity.Role) (entity.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return entity.User{}, err
	}
	if user.Role != role {
		return entity.User{}, ErrNotFound
	}
	return user, nil
}

// UpdateAccount edits name, email and (for students) semester. The
// password is left unchanged.
func (s *Service) UpdateAccount(ctx context.Context, id string, role entity.Role, in AccountInput) (entity.User, error) {
	if err := checkMemberRole(role); err != nil {
		return entity.User{}, err
	}
	user, err := s.GetAccount(ctx, id, role)
	if err != nil {
		return entity.User{}, err
	}
	in.Email = entity.NormalizeEmail(in.Email)
	if err := validateAccount(role, in, false); err != nil {
		return entity.User{}, err
	}

	user.Name = in.Name
	user.Email = in.Email
	user.Semester = in.Semester
	updated, err := s.users.Update(ctx, user)
	if err != nil {
		return entity.User{}, err
	}
	s.log.Info("account updated", "user_id", updated.ID, "role", updated.Role)
	return updated, nil
}

// DeleteAccount removes a student or teacher; ids of other roles are
// reported as ErrNotFound and nothing is deleted.
func (s *Service) DeleteAccount(ctx context.Context, id string, role entity.Role) error {
	if err := checkMemberRole(role); err != nil {
		return err
	}
	if err := s.users.Delete(ctx, id, role); err != nil {
		return err
	}
	s.log.Info("account deleted", "user_id", id, "role", role)
	return nil
}
