package admins

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/security"
)

var testPassword = config.PasswordConfig{
	ArgonMemoryKB:    8,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

var testJWT = config.JWTConfig{
	Secret:            "test-secret-test-secret-test-secret",
	Issuer:            "storefront-test",
	ExpirationMinutes: 60,
}

type stubRepo struct {
	admins    map[string]*models.AdminUser
	updates   map[string]any
	createErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{admins: map[string]*models.AdminUser{}}
}

func (r *stubRepo) Create(ctx context.Context, admin *models.AdminUser) error {
	if r.createErr != nil {
		return r.createErr
	}
	admin.ID = uuid.New()
	r.admins[admin.Email] = admin
	return nil
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	admin, ok := r.admins[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return admin, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.AdminUser, error) {
	for _, admin := range r.admins {
		if admin.ID == id {
			return admin, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	r.updates = updates
	return nil
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, testJWT, testPassword)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func seedAdmin(t *testing.T, repo *stubRepo, email, password string) *models.AdminUser {
	t.Helper()
	hash, err := security.HashPassword(password, testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	admin := &models.AdminUser{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test Admin",
		PasswordHash: hash,
		IsActive:     true,
	}
	repo.admins[email] = admin
	return admin
}

func TestLoginSucceeds(t *testing.T) {
	repo := newStubRepo()
	seedAdmin(t, repo, "admin@example.com", "correct horse battery")
	svc := newTestService(t, repo)

	result, err := svc.Login(context.Background(), " Admin@Example.COM ", "correct horse battery")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if result.Token == "" {
		t.Fatalf("expected a minted token")
	}
	if result.Admin.Email != "admin@example.com" {
		t.Fatalf("unexpected admin %+v", result.Admin)
	}
	if _, ok := repo.updates["last_login_at"]; !ok {
		t.Fatalf("expected last login recorded")
	}
}

func TestLoginBadEmailAndBadPasswordReadTheSame(t *testing.T) {
	repo := newStubRepo()
	seedAdmin(t, repo, "admin@example.com", "correct horse battery")
	svc := newTestService(t, repo)

	_, badEmail := svc.Login(context.Background(), "nobody@example.com", "correct horse battery")
	_, badPassword := svc.Login(context.Background(), "admin@example.com", "wrong password!")

	for _, err := range []error{badEmail, badPassword} {
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
			t.Fatalf("expected unauthorized, got %v", err)
		}
		if typed.Message() != "invalid credentials" {
			t.Fatalf("credential failures must be indistinguishable, got %q", typed.Message())
		}
	}
}

func TestLoginRejectsInactiveAdmin(t *testing.T) {
	repo := newStubRepo()
	admin := seedAdmin(t, repo, "admin@example.com", "correct horse battery")
	admin.IsActive = false
	svc := newTestService(t, repo)

	_, err := svc.Login(context.Background(), "admin@example.com", "correct horse battery")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized for inactive admin, got %v", err)
	}
}

func TestCreateAdminEnforcesPasswordLength(t *testing.T) {
	svc := newTestService(t, newStubRepo())
	_, err := svc.CreateAdmin(context.Background(), "new@example.com", "New Admin", "short")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateAdminDuplicateEmail(t *testing.T) {
	repo := newStubRepo()
	repo.createErr = &pgconn.PgError{Code: "23505", ConstraintName: "admin_users_email_key"}
	svc := newTestService(t, repo)

	_, err := svc.CreateAdmin(context.Background(), "dup@example.com", "Dup", "long enough password")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestChangePasswordVerifiesCurrent(t *testing.T) {
	repo := newStubRepo()
	seedAdmin(t, repo, "admin@example.com", "correct horse battery")
	svc := newTestService(t, repo)

	err := svc.ChangePassword(context.Background(), "admin@example.com", "wrong password!", "a new long password")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}

	if err := svc.ChangePassword(context.Background(), "admin@example.com", "correct horse battery", "a new long password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, ok := repo.updates["password_hash"]; !ok {
		t.Fatalf("expected password hash updated")
	}
}

func TestChangePasswordEnforcesLength(t *testing.T) {
	repo := newStubRepo()
	seedAdmin(t, repo, "admin@example.com", "correct horse battery")
	svc := newTestService(t, repo)

	err := svc.ChangePassword(context.Background(), "admin@example.com", "correct horse battery", "short")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
