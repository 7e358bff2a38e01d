package downloads

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/storage/gcs"
)

type stubStore struct {
	token        *models.DownloadToken
	product      *models.Product
	order        *models.Order
	consumeOK    bool
	consumeCalls int
}

func (s *stubStore) FindByToken(ctx context.Context, token string) (*models.DownloadToken, error) {
	if s.token == nil || s.token.Token != token {
		return nil, gorm.ErrRecordNotFound
	}
	return s.token, nil
}

func (s *stubStore) FindProductsWithFiles(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if s.product == nil {
		return nil, nil
	}
	return []models.Product{*s.product}, nil
}

func (s *stubStore) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.order, nil
}

func (s *stubStore) ConsumeDownload(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	s.consumeCalls++
	return s.consumeOK, nil
}

type stubSigner struct {
	url    string
	err    error
	signed []string
	opts   []gcs.SignedURLOptions
}

func (s *stubSigner) SignedDownloadURL(object string, opts gcs.SignedURLOptions) (string, error) {
	s.signed = append(s.signed, object)
	s.opts = append(s.opts, opts)
	if s.err != nil {
		return "", s.err
	}
	return s.url, nil
}

var errSignerDown = errors.New("signer unavailable")

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newGate(t *testing.T, store *stubStore, signer *stubSigner, now time.Time) *service {
	t.Helper()
	svc, err := NewService(store, signer, config.DownloadsConfig{SignedURLTTL: time.Hour}, nil)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	gate := svc.(*service)
	gate.now = fixedClock(now)
	return gate
}

func validStore(now time.Time) *stubStore {
	productID := uuid.New()
	return &stubStore{
		token: &models.DownloadToken{
			ID:            uuid.New(),
			OrderID:       uuid.New(),
			ProductID:     productID,
			Token:         "tok",
			DownloadCount: 1,
			MaxDownloads:  5,
			ExpiresAt:     now.Add(24 * time.Hour),
		},
		product: &models.Product{
			ID:   productID,
			Name: "Sample Pack",
			Files: []models.ProductFile{
				{StorageKey: "products/a/pack.zip", OriginalName: "pack.zip", FileSize: 1024, MimeType: "application/zip"},
				{StorageKey: "products/a/bonus.pdf", OriginalName: "bonus.pdf", FileSize: 256, MimeType: "application/pdf"},
			},
		},
		order:     &models.Order{OrderNumber: "HT25090001", CustomerEmail: "buyer@example.com"},
		consumeOK: true,
	}
}

func TestResolveReportsTokenState(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	gate := newGate(t, store, &stubSigner{}, now)

	status, err := gate.Resolve(context.Background(), "tok")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if status.OrderNumber != "HT25090001" || status.CustomerEmail != "buyer@example.com" {
		t.Fatalf("order context missing: %+v", status)
	}
	if status.ProductName != "Sample Pack" {
		t.Fatalf("unexpected product name %q", status.ProductName)
	}
	if len(status.Files) != 2 || status.Files[1].Index != 1 || status.Files[1].OriginalName != "bonus.pdf" {
		t.Fatalf("unexpected files: %+v", status.Files)
	}
	if status.Remaining != 4 {
		t.Fatalf("expected 4 remaining, got %d", status.Remaining)
	}
}

func TestExpiryCheckedBeforeLimit(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	store.token.ExpiresAt = now.Add(-time.Minute)
	store.token.DownloadCount = 5 // also exhausted, expiry must win
	gate := newGate(t, store, &stubSigner{}, now)

	_, err := gate.Resolve(context.Background(), "tok")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeTokenExpired {
		t.Fatalf("expected TOKEN_EXPIRED, got %v", err)
	}

	_, err = gate.RetrieveFile(context.Background(), "tok", 0)
	typed = pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeTokenExpired {
		t.Fatalf("expected TOKEN_EXPIRED on retrieve, got %v", err)
	}
}

func TestRetrieveFileSignsURLAndConsumes(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	signer := &stubSigner{url: "https://storage.example/signed"}
	gate := newGate(t, store, signer, now)

	link, err := gate.RetrieveFile(context.Background(), "tok", 1)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if link.URL != "https://storage.example/signed" {
		t.Fatalf("unexpected url %q", link.URL)
	}
	if len(signer.signed) != 1 || signer.signed[0] != "products/a/bonus.pdf" {
		t.Fatalf("signed wrong object: %v", signer.signed)
	}
	opts := signer.opts[0]
	if opts.Expires != time.Hour {
		t.Fatalf("expected 1h expiry, got %s", opts.Expires)
	}
	if opts.ResponseDisposition != `attachment; filename="bonus.pdf"` {
		t.Fatalf("unexpected disposition %q", opts.ResponseDisposition)
	}
	if store.consumeCalls != 1 {
		t.Fatalf("expected one consume call, got %d", store.consumeCalls)
	}
	if link.Remaining != 3 {
		t.Fatalf("expected 3 remaining after this download, got %d", link.Remaining)
	}
	if !link.ExpiresAt.Equal(gate.now().Add(time.Hour)) {
		t.Fatalf("unexpected link expiry %s", link.ExpiresAt)
	}
}

func TestRetrieveFileLimitExceeded(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	store.token.DownloadCount = 5
	gate := newGate(t, store, &stubSigner{}, now)

	_, err := gate.RetrieveFile(context.Background(), "tok", 0)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDownloadLimit {
		t.Fatalf("expected DOWNLOAD_LIMIT_EXCEEDED, got %v", err)
	}
	if store.consumeCalls != 0 {
		t.Fatalf("counter must not move past the limit")
	}
}

func TestRetrieveFileLostRaceForLastSlot(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	store.token.DownloadCount = 4
	store.consumeOK = false
	gate := newGate(t, store, &stubSigner{url: "https://storage.example/signed"}, now)

	_, err := gate.RetrieveFile(context.Background(), "tok", 0)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDownloadLimit {
		t.Fatalf("expected DOWNLOAD_LIMIT_EXCEEDED after losing the race, got %v", err)
	}
}

func TestRetrieveFileSignerFailureConsumesNothing(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	signer := &stubSigner{err: errSignerDown}
	gate := newGate(t, store, signer, now)

	_, err := gate.RetrieveFile(context.Background(), "tok", 0)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if store.consumeCalls != 0 {
		t.Fatalf("a failed signing attempt must not cost a download, got %d consume calls", store.consumeCalls)
	}
}

func TestRetrieveFileBadIndex(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	gate := newGate(t, store, &stubSigner{}, now)

	for _, index := range []int{-1, 2, 99} {
		_, err := gate.RetrieveFile(context.Background(), "tok", index)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("index %d: expected validation error, got %v", index, err)
		}
	}
	if store.consumeCalls != 0 {
		t.Fatalf("bad index must not consume a download")
	}
}

func TestUnknownToken(t *testing.T) {
	now := time.Now()
	gate := newGate(t, &stubStore{}, &stubSigner{}, now)

	_, err := gate.Resolve(context.Background(), "missing")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestProductPulledAfterPurchase(t *testing.T) {
	now := time.Now()
	store := validStore(now)
	store.product = nil
	gate := newGate(t, store, &stubSigner{}, now)

	_, err := gate.Resolve(context.Background(), "tok")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found when product is gone, got %v", err)
	}
}
