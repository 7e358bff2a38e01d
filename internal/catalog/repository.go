package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
)

// Repository defines persistence operations for the catalog tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, product *models.Product) (*models.Product, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error
	AttachFile(ctx context.Context, file *models.ProductFile) error
	RemoveFile(ctx context.Context, productID, fileID uuid.UUID) (*models.ProductFile, error)
	AttachImage(ctx context.Context, image *models.ProductImage) error
	RemoveImage(ctx context.Context, productID, imageID uuid.UUID) error
	IncrementSalesCount(tx *gorm.DB, id uuid.UUID, delta int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, uploaded_at ASC") }).
		Preload("Images").
		Where("id = ?", id).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActiveByIDs returns only active products; inactive or unknown ids are
// simply absent from the result.
func (r *repository) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Files").
		Where("id IN ? AND status = ?", ids, enums.ProductStatusActive).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params, filters ListFilters) (*ProductList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}

	q := r.db.WithContext(ctx).Model(&models.Product{}).
		Preload("Images").
		Preload("Files")

	if !filters.IncludeUnpublished {
		q = q.Where("status = ?", enums.ProductStatusActive)
	}
	if filters.Category != nil {
		q = q.Where("category = ?", *filters.Category)
	}
	if filters.Query != "" {
		pattern := "%" + filters.Query + "%"
		q = q.Where("name ILIKE ? OR description ILIKE ?", pattern, pattern)
	}
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Product
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rows) > limit {
		last := rows[limit-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}

	list := &ProductList{NextCursor: nextCursor}
	for _, p := range rows {
		list.Products = append(list.Products, toSummary(p))
	}
	return list, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	result := r.db.WithContext(ctx).Model(&models.Product{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) AttachFile(ctx context.Context, file *models.ProductFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

func (r *repository) RemoveFile(ctx context.Context, productID, fileID uuid.UUID) (*models.ProductFile, error) {
	var file models.ProductFile
	err := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", fileID, productID).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&file).Error; err != nil {
		return nil, err
	}
	return &file, nil
}

func (r *repository) AttachImage(ctx context.Context, image *models.ProductImage) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *repository) RemoveImage(ctx context.Context, productID, imageID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND product_id = ?", imageID, productID).
		Delete(&models.ProductImage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) IncrementSalesCount(tx *gorm.DB, id uuid.UUID, delta int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Model(&models.Product{}).
		Where("id = ?", id).
		UpdateColumn("sales_count", gorm.Expr("sales_count + ?", delta)).Error
}

func toSummary(p models.Product) ProductSummary {
	summary := ProductSummary{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		ShortDescription: p.ShortDescription,
		Price:            p.Price,
		Category:         p.Category,
		Status:           p.Status,
		Features:         p.Features,
		Tags:             p.Tags,
		Duration:         p.Duration,
		FileCount:        len(p.Files),
		CreatedAt:        p.CreatedAt,
	}
	for _, img := range p.Images {
		summary.Images = append(summary.Images, ImageSummary{
			ID:        img.ID,
			URL:       img.URL,
			Alt:       img.Alt,
			IsPrimary: img.IsPrimary,
		})
	}
	return summary
}
