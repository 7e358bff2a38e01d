package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
)

// FileStore removes stored objects when deliverables are detached.
type FileStore interface {
	Delete(ctx context.Context, object string) error
}

// Service defines catalog operations for both the storefront and back office.
type Service interface {
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error)
	Get(ctx context.Context, id uuid.UUID, includeUnpublished bool) (*ProductSummary, error)
	GetModel(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, input CreateProductInput) (*ProductSummary, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductSummary, error)
	Delete(ctx context.Context, id uuid.UUID) error
	AttachFile(ctx context.Context, input AttachFileInput) error
	RemoveFile(ctx context.Context, productID, fileID uuid.UUID) error
}

type service struct {
	repo  Repository
	files FileStore
}

// NewService builds a catalog service with the required dependencies.
func NewService(repo Repository, files FileStore) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, files: files}, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	return list, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, includeUnpublished bool) (*ProductSummary, error) {
	product, err := s.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !includeUnpublished && product.Status != enums.ProductStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	summary := toSummary(*product)
	return &summary, nil
}

func (s *service) GetModel(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*ProductSummary, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	category := input.Category
	if category == "" {
		category = enums.ProductCategoryAudio
	}
	if !category.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", category))
	}
	status := input.Status
	if status == "" {
		status = enums.ProductStatusDraft
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", status))
	}

	product := &models.Product{
		Name:                name,
		Description:         input.Description,
		ShortDescription:    input.ShortDescription,
		Price:               input.Price,
		Category:            category,
		Status:              status,
		Features:            pq.StringArray(toStringArray(input.Features)),
		Tags:                pq.StringArray(toStringArray(input.Tags)),
		Duration:            input.Duration,
		DownloadLimit:       normalizePositive(input.DownloadLimit, 5),
		DownloadExpiryHours: normalizePositive(input.DownloadExpiryHours, 48),
	}

	if _, err := s.repo.Create(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
	}
	summary := toSummary(*product)
	return &summary, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*ProductSummary, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		updates["name"] = name
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.ShortDescription != nil {
		updates["short_description"] = *input.ShortDescription
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
		}
		updates["price"] = *input.Price
	}
	if input.Category != nil {
		if !input.Category.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid category %q", *input.Category))
		}
		updates["category"] = *input.Category
	}
	if input.Status != nil {
		if !input.Status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", *input.Status))
		}
		updates["status"] = *input.Status
	}
	if input.Features != nil {
		updates["features"] = pq.StringArray(toStringArray(input.Features))
	}
	if input.Tags != nil {
		updates["tags"] = pq.StringArray(toStringArray(input.Tags))
	}
	if input.Duration != nil {
		updates["duration"] = *input.Duration
	}
	if input.DownloadLimit != nil {
		if *input.DownloadLimit <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "download limit must be positive")
		}
		updates["download_limit"] = *input.DownloadLimit
	}
	if input.DownloadExpiryHours != nil {
		if *input.DownloadExpiryHours <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "download expiry must be positive")
		}
		updates["download_expiry_hours"] = *input.DownloadExpiryHours
	}

	if err := s.repo.Update(ctx, id, updates); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}

	return s.Get(ctx, id, true)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) AttachFile(ctx context.Context, input AttachFileInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.StorageKey == "" || input.OriginalName == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "storage key and original name required")
	}

	if _, err := s.GetModel(ctx, input.ProductID); err != nil {
		return err
	}

	file := &models.ProductFile{
		ProductID:    input.ProductID,
		StorageKey:   input.StorageKey,
		OriginalName: input.OriginalName,
		FileSize:     input.FileSize,
		MimeType:     input.MimeType,
		Position:     input.Position,
	}
	if err := s.repo.AttachFile(ctx, file); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach product file")
	}
	return nil
}

func (s *service) RemoveFile(ctx context.Context, productID, fileID uuid.UUID) error {
	if productID == uuid.Nil || fileID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id and file id required")
	}

	file, err := s.repo.RemoveFile(ctx, productID, fileID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product file not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove product file")
	}

	// Storage cleanup is best-effort; the DB row is the source of truth.
	if s.files != nil && file.StorageKey != "" {
		_ = s.files.Delete(ctx, file.StorageKey)
	}
	return nil
}

func normalizePositive(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func toStringArray(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
