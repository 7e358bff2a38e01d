package entitlements

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
)

// Repository defines persistence operations for download tokens.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, token *models.DownloadToken) error
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error)
	FindByToken(ctx context.Context, token string) (*models.DownloadToken, error)
	FindProductsWithFiles(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// FindOrderForUpdate locks the order row for the remainder of the
	// transaction so concurrent issuance serializes.
	FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	// ConsumeDownload atomically increments the counter while it is still
	// below the limit; false means the quota was already exhausted.
	ConsumeDownload(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an entitlements repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, token *models.DownloadToken) error {
	return r.db.WithContext(ctx).Create(token).Error
}

func (r *repository) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error) {
	var tokens []models.DownloadToken
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *repository) FindByToken(ctx context.Context, token string) (*models.DownloadToken, error) {
	var row models.DownloadToken
	err := r.db.WithContext(ctx).
		Where("token = ?", token).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindProductsWithFiles loads products regardless of catalog status; a paid
// order keeps its entitlements even if the listing is pulled afterwards.
func (r *repository) FindProductsWithFiles(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.db.WithContext(ctx).
		Preload("Files", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC, uploaded_at ASC") }).
		Where("id IN ?", ids).
		Find(&products).Error
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *repository) FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindOrderForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Where("order_id = ?", order.ID).Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ConsumeDownload(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error) {
	if tokenID == uuid.Nil {
		return false, errors.New("token id required")
	}
	result := r.db.WithContext(ctx).Model(&models.DownloadToken{}).
		Where("id = ? AND download_count < max_downloads", tokenID).
		Updates(map[string]any{
			"download_count":     gorm.Expr("download_count + 1"),
			"last_downloaded_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
