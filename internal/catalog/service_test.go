package catalog

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
)

type stubRepo struct {
	products map[uuid.UUID]*models.Product
	updates  map[string]any
	attached []models.ProductFile
	removed  *models.ProductFile
}

func newStubRepo() *stubRepo {
	return &stubRepo{products: map[uuid.UUID]*models.Product{}}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	product.ID = uuid.New()
	r.products[product.ID] = product
	return product, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, ok := r.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return product, nil
}

func (r *stubRepo) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return nil, nil
}

func (r *stubRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error) {
	return &ProductList{}, nil
}

func (r *stubRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if _, ok := r.products[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	r.updates = updates
	return nil
}

func (r *stubRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.products[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *stubRepo) AttachFile(ctx context.Context, file *models.ProductFile) error {
	r.attached = append(r.attached, *file)
	return nil
}

func (r *stubRepo) RemoveFile(ctx context.Context, productID, fileID uuid.UUID) (*models.ProductFile, error) {
	if r.removed == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return r.removed, nil
}

func (r *stubRepo) AttachImage(ctx context.Context, image *models.ProductImage) error { return nil }

func (r *stubRepo) RemoveImage(ctx context.Context, productID, imageID uuid.UUID) error { return nil }

func (r *stubRepo) IncrementSalesCount(tx *gorm.DB, id uuid.UUID, delta int) error { return nil }

type stubFileStore struct {
	deleted []string
}

func (s *stubFileStore) Delete(ctx context.Context, object string) error {
	s.deleted = append(s.deleted, object)
	return nil
}

func price(value string) decimal.Decimal {
	d, _ := decimal.NewFromString(value)
	return d
}

func newTestService(t *testing.T, repo *stubRepo, files FileStore) Service {
	t.Helper()
	svc, err := NewService(repo, files)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestCreateAppliesDefaults(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, nil)

	summary, err := svc.Create(context.Background(), CreateProductInput{
		Name:  "  Lo-fi Drum Kit  ",
		Price: price("24.00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if summary.Name != "Lo-fi Drum Kit" {
		t.Fatalf("expected trimmed name, got %q", summary.Name)
	}
	if summary.Category != enums.ProductCategoryAudio {
		t.Fatalf("expected audio default, got %s", summary.Category)
	}
	if summary.Status != enums.ProductStatusDraft {
		t.Fatalf("expected draft default, got %s", summary.Status)
	}

	stored := repo.products[summary.ID]
	if stored.DownloadLimit != 5 || stored.DownloadExpiryHours != 48 {
		t.Fatalf("expected download defaults 5/48, got %d/%d", stored.DownloadLimit, stored.DownloadExpiryHours)
	}
}

func TestCreateRejectsNegativePrice(t *testing.T) {
	svc := newTestService(t, newStubRepo(), nil)
	_, err := svc.Create(context.Background(), CreateProductInput{Name: "Kit", Price: price("-1")})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestGetHidesUnpublishedFromStorefront(t *testing.T) {
	repo := newStubRepo()
	product := &models.Product{ID: uuid.New(), Name: "Draft Kit", Status: enums.ProductStatusDraft}
	repo.products[product.ID] = product
	svc := newTestService(t, repo, nil)

	_, err := svc.Get(context.Background(), product.ID, false)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected draft hidden from storefront, got %v", err)
	}

	if _, err := svc.Get(context.Background(), product.ID, true); err != nil {
		t.Fatalf("back office must see drafts: %v", err)
	}
}

func TestUpdatePartial(t *testing.T) {
	repo := newStubRepo()
	product := &models.Product{ID: uuid.New(), Name: "Kit", Status: enums.ProductStatusDraft, Category: enums.ProductCategoryAudio}
	repo.products[product.ID] = product
	svc := newTestService(t, repo, nil)

	newName := "Kit v2"
	newStatus := enums.ProductStatusActive
	if _, err := svc.Update(context.Background(), product.ID, UpdateProductInput{Name: &newName, Status: &newStatus}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(repo.updates) != 2 {
		t.Fatalf("expected only touched columns, got %v", repo.updates)
	}
	if repo.updates["name"] != "Kit v2" {
		t.Fatalf("name update missing: %v", repo.updates)
	}
}

func TestUpdateRejectsNonPositiveLimit(t *testing.T) {
	repo := newStubRepo()
	product := &models.Product{ID: uuid.New(), Name: "Kit"}
	repo.products[product.ID] = product
	svc := newTestService(t, repo, nil)

	zero := 0
	_, err := svc.Update(context.Background(), product.ID, UpdateProductInput{DownloadLimit: &zero})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAttachFileRequiresExistingProduct(t *testing.T) {
	svc := newTestService(t, newStubRepo(), nil)
	err := svc.AttachFile(context.Background(), AttachFileInput{
		ProductID:    uuid.New(),
		StorageKey:   "products/x/kit.zip",
		OriginalName: "kit.zip",
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveFileCleansUpStorage(t *testing.T) {
	repo := newStubRepo()
	product := &models.Product{ID: uuid.New(), Name: "Kit"}
	repo.products[product.ID] = product
	repo.removed = &models.ProductFile{ID: uuid.New(), ProductID: product.ID, StorageKey: "products/x/kit.zip"}
	files := &stubFileStore{}
	svc := newTestService(t, repo, files)

	if err := svc.RemoveFile(context.Background(), product.ID, repo.removed.ID); err != nil {
		t.Fatalf("remove file: %v", err)
	}
	if len(files.deleted) != 1 || files.deleted[0] != "products/x/kit.zip" {
		t.Fatalf("expected storage cleanup, got %v", files.deleted)
	}
}

func TestRemoveFileUnknown(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, nil)
	err := svc.RemoveFile(context.Background(), uuid.New(), uuid.New())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
