package admins

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/auth"
	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/security"
)

const minPasswordLen = 10

// LoginResult bundles the minted token with the authenticated admin.
type LoginResult struct {
	Token string
	Admin *models.AdminUser
}

// Service handles back-office authentication and account management.
type Service interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	CreateAdmin(ctx context.Context, email, name, password string) (*models.AdminUser, error)
	ChangePassword(ctx context.Context, email, current, next string) error
}

type service struct {
	repo     Repository
	jwt      config.JWTConfig
	password config.PasswordConfig
}

// NewService builds an admin auth service with the required dependencies.
func NewService(repo Repository, jwt config.JWTConfig, password config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("admins repository required")
	}
	return &service{repo: repo, jwt: jwt, password: password}, nil
}

// Login verifies credentials and mints an access token. Bad email and bad
// password read identically to the caller.
func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}

	admin, err := s.repo.FindByEmail(ctx, normalized)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load admin")
	}
	if !admin.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(password, admin.PasswordHash)
	if err != nil || !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := time.Now()
	token, err := auth.MintAccessToken(s.jwt, now, auth.AccessTokenPayload{
		AdminID: admin.ID,
		Email:   admin.Email,
		Name:    admin.Name,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	_ = s.repo.Update(ctx, admin.ID, map[string]any{"last_login_at": now})

	return &LoginResult{Token: token, Admin: admin}, nil
}

func (s *service) CreateAdmin(ctx context.Context, email, name, password string) (*models.AdminUser, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name required")
	}
	if len(password) < minPasswordLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	hash, err := security.HashPassword(password, s.password)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	admin := &models.AdminUser{
		Email:        normalized,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.repo.Create(ctx, admin); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "admin with that email already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create admin")
	}
	return admin, nil
}

func (s *service) ChangePassword(ctx context.Context, email, current, next string) error {
	result, err := s.Login(ctx, email, current)
	if err != nil {
		return err
	}
	if len(next) < minPasswordLen {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLen))
	}

	hash, err := security.HashPassword(next, s.password)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	if err := s.repo.Update(ctx, result.Admin.ID, map[string]any{"password_hash": hash}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update password")
	}
	return nil
}
