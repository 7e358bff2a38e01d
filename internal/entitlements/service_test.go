package entitlements

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
)

type stubRepo struct {
	order     *models.Order
	orderErr  error
	existing  []models.DownloadToken
	products  []models.Product
	created   []models.DownloadToken
	createErr error
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) Create(ctx context.Context, token *models.DownloadToken) error {
	if r.createErr != nil {
		return r.createErr
	}
	token.ID = uuid.New()
	r.created = append(r.created, *token)
	return nil
}

func (r *stubRepo) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error) {
	return r.existing, nil
}

func (r *stubRepo) FindByToken(ctx context.Context, token string) (*models.DownloadToken, error) {
	for i := range r.existing {
		if r.existing[i].Token == token {
			return &r.existing[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubRepo) FindProductsWithFiles(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return r.products, nil
}

func (r *stubRepo) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if r.order == nil || r.order.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return r.order, nil
}

func (r *stubRepo) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if r.orderErr != nil {
		return nil, r.orderErr
	}
	return r.FindOrder(ctx, id)
}

func (r *stubRepo) ConsumeDownload(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	return true, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

func newTestService(t *testing.T, repo *stubRepo, defaults config.DownloadsConfig) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{}, defaults)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func paidOrder(productIDs ...uuid.UUID) *models.Order {
	order := &models.Order{ID: uuid.New(), PaymentStatus: enums.PaymentStatusCompleted}
	for _, id := range productIDs {
		order.Items = append(order.Items, models.OrderItem{ProductID: id, Quantity: 1})
	}
	return order
}

func fileBacked(id uuid.UUID) models.Product {
	return models.Product{
		ID:    id,
		Files: []models.ProductFile{{ID: uuid.New(), ProductID: id, StorageKey: "products/x/file.zip"}},
	}
}

func TestIssueMintsOneTokenPerFileBackedProduct(t *testing.T) {
	withFiles := uuid.New()
	withoutFiles := uuid.New()
	repo := &stubRepo{
		order:    paidOrder(withFiles, withoutFiles),
		products: []models.Product{fileBacked(withFiles), {ID: withoutFiles}},
	}
	svc := newTestService(t, repo, config.DownloadsConfig{DefaultLimit: 5, DefaultExpiryHours: 48})

	tokens, err := svc.Issue(context.Background(), repo.order.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(tokens) != 1 {
		t.Fatalf("expected one token, got %d", len(tokens))
	}
	token := tokens[0]
	if token.ProductID != withFiles {
		t.Fatalf("token minted for wrong product")
	}
	if len(token.Token) != 64 {
		t.Fatalf("expected 64 hex characters, got %d", len(token.Token))
	}
	if token.MaxDownloads != 5 {
		t.Fatalf("expected default limit 5, got %d", token.MaxDownloads)
	}
	lifetime := time.Until(token.ExpiresAt)
	if lifetime < 47*time.Hour || lifetime > 49*time.Hour {
		t.Fatalf("expected ~48h expiry, got %s", lifetime)
	}
}

func TestIssueReusesExistingTokens(t *testing.T) {
	productID := uuid.New()
	order := paidOrder(productID)
	existing := models.DownloadToken{
		ID:        uuid.New(),
		OrderID:   order.ID,
		ProductID: productID,
		Token:     "existing-token",
	}
	repo := &stubRepo{
		order:    order,
		existing: []models.DownloadToken{existing},
		products: []models.Product{fileBacked(productID)},
	}
	svc := newTestService(t, repo, config.DownloadsConfig{})

	tokens, err := svc.Issue(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Token != "existing-token" {
		t.Fatalf("expected the existing token back, got %+v", tokens)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no new tokens, got %d", len(repo.created))
	}
}

func TestIssueRejectsUnpaidOrder(t *testing.T) {
	order := paidOrder(uuid.New())
	order.PaymentStatus = enums.PaymentStatusPending
	repo := &stubRepo{order: order}
	svc := newTestService(t, repo, config.DownloadsConfig{})

	_, err := svc.Issue(context.Background(), order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeOrderNotPaid {
		t.Fatalf("expected ORDER_NOT_PAID, got %v", err)
	}
}

func TestIssueUnknownOrder(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, config.DownloadsConfig{})
	_, err := svc.Issue(context.Background(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestIssueHonorsProductOverrides(t *testing.T) {
	productID := uuid.New()
	product := fileBacked(productID)
	product.DownloadLimit = 12
	product.DownloadExpiryHours = 6
	repo := &stubRepo{order: paidOrder(productID), products: []models.Product{product}}
	svc := newTestService(t, repo, config.DownloadsConfig{DefaultLimit: 5, DefaultExpiryHours: 48})

	tokens, err := svc.Issue(context.Background(), repo.order.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens[0].MaxDownloads != 12 {
		t.Fatalf("expected override limit 12, got %d", tokens[0].MaxDownloads)
	}
	lifetime := time.Until(tokens[0].ExpiresAt)
	if lifetime < 5*time.Hour || lifetime > 7*time.Hour {
		t.Fatalf("expected ~6h expiry, got %s", lifetime)
	}
}

func TestIssueFallsBackToBuiltinDefaults(t *testing.T) {
	productID := uuid.New()
	repo := &stubRepo{order: paidOrder(productID), products: []models.Product{fileBacked(productID)}}
	svc := newTestService(t, repo, config.DownloadsConfig{})

	tokens, err := svc.Issue(context.Background(), repo.order.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if tokens[0].MaxDownloads != 5 {
		t.Fatalf("expected builtin limit 5, got %d", tokens[0].MaxDownloads)
	}
	lifetime := time.Until(tokens[0].ExpiresAt)
	if lifetime < 47*time.Hour || lifetime > 49*time.Hour {
		t.Fatalf("expected builtin 48h expiry, got %s", lifetime)
	}
}

func TestIssueTxSkipsConcurrentDuplicate(t *testing.T) {
	productID := uuid.New()
	repo := &stubRepo{
		order:     paidOrder(productID),
		products:  []models.Product{fileBacked(productID)},
		createErr: &pgconn.PgError{Code: "23505", ConstraintName: "download_tokens_order_product_key"},
	}
	svc := newTestService(t, repo, config.DownloadsConfig{})

	tokens, err := svc.Issue(context.Background(), repo.order.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(tokens) != 0 {
		t.Fatalf("expected duplicate insert to be skipped, got %d tokens", len(tokens))
	}
}

func TestIssueTxRequiresTransaction(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, config.DownloadsConfig{})
	if _, err := svc.IssueTx(context.Background(), nil, paidOrder()); err == nil {
		t.Fatalf("expected error without transaction")
	}
}

func TestFindByTokenUnknown(t *testing.T) {
	svc := newTestService(t, &stubRepo{}, config.DownloadsConfig{})
	_, err := svc.FindByToken(context.Background(), "nope")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
