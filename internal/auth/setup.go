package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Niranjjith/Department-portal/internal/entity"
)

const setupSubject = "admin-setup"

// SetupRequired reports whether the portal still has no admin account.
func (s *Service) SetupRequired(ctx context.Context) (bool, error) {
	_, exists, err := s.currentAdmin(ctx)
	return !exists, err
}

// IssueSetupToken signs a short-lived token that authorises creating the
// first admin account. It fails with ErrSetupCompleted once an admin exists.
func (s *Service) IssueSetupToken(ctx context.Context) (string, error) {
	_, exists, err := s.currentAdmin(ctx)
	if err != nil {
		return "", err
	}
	if exists {
		return "", ErrSetupCompleted
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   setupSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.SetupTokenTTL)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.setupKey)
	if err != nil {
		return "", errors.Wrap(err, "sign setup token")
	}
	return token, nil
}

// CheckSetupToken verifies signature, subject and expiry of token.
func (s *Service) CheckSetupToken(token string) error {
	if token == "" {
		return ErrInvalidSetupToken
	}
	_, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return s.setupKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(setupSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return ErrInvalidSetupToken
	}
	return nil
}

type SetupInput struct {
	Name            string `form:"name" validate:"required"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=6"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
}

// ProvisionAdmin creates the first admin account. Only one call can ever
// succeed: later calls find the admin slot taken and fail with
// ErrSetupCompleted, whatever the token.
func (s *Service) ProvisionAdmin(ctx context.Context, token string, in SetupInput) (entity.User, error) {
	if err := s.CheckSetupToken(token); err != nil {
		return entity.User{}, err
	}
	in.Email = entity.NormalizeEmail(in.Email)
	if err := validateStruct(in); err != nil {
		return entity.User{}, err
	}

	hash, err := HashPassword(in.Password, s.cfg.BcryptCost)
	if err != nil {
		return entity.User{}, errors.Wrap(err, "hash password")
	}
	admin, created, err := s.users.CreateAdminIfAbsent(ctx, entity.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return entity.User{}, err
	}
	if !created {
		return entity.User{}, ErrSetupCompleted
	}
	s.log.Info("admin account provisioned", "user_id", admin.ID)
	return admin, nil
}
