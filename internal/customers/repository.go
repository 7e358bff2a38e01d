package customers

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
)

// Repository tracks purchase history per customer email.
type Repository interface {
	RecordOrderTx(ctx context.Context, tx *gorm.DB, email string, name *string, at time.Time) error
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	List(ctx context.Context, params pagination.Params) ([]models.Customer, string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a customers repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// RecordOrderTx upserts the customer row and bumps its order count.
func (r *repository) RecordOrderTx(ctx context.Context, tx *gorm.DB, email string, name *string, at time.Time) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return errors.New("email required")
	}

	row := models.Customer{
		Email:      normalized,
		Name:       name,
		OrderCount: 1,
		LastSeenAt: &at,
	}
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]any{
			"order_count":  gorm.Expr("customers.order_count + 1"),
			"last_seen_at": at,
			"updated_at":   at,
		}),
	}).Create(&row).Error
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&customer).Error
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *repository) List(ctx context.Context, params pagination.Params) ([]models.Customer, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	q := r.db.WithContext(ctx).Model(&models.Customer{})
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Customer
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&rows).Error; err != nil {
		return nil, "", err
	}

	nextCursor := ""
	if len(rows) > limit {
		last := rows[limit-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	return rows, nextCursor, nil
}
