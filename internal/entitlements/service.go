package entitlements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/security"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service issues and reads download entitlements.
type Service interface {
	// Issue locks the paid order and mints its token set. Repeated calls
	// return the same tokens.
	Issue(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error)
	// IssueTx mints one token per file-backed product on the order. Safe to
	// call repeatedly; products that already hold a token are skipped.
	IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.DownloadToken, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error)
	FindByToken(ctx context.Context, token string) (*models.DownloadToken, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	defaults config.DownloadsConfig
}

// NewService builds an entitlement service with the required dependencies.
func NewService(repo Repository, tx txRunner, defaults config.DownloadsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("entitlements repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, defaults: defaults}, nil
}

func (s *service) Issue(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var tokens []models.DownloadToken
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus != enums.PaymentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeOrderNotPaid, "order has not been paid")
		}

		tokens, err = s.IssueTx(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

func (s *service) IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.DownloadToken, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}

	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load existing tokens")
	}
	issued := map[uuid.UUID]models.DownloadToken{}
	for _, token := range existing {
		issued[token.ProductID] = token
	}

	productIDs := make([]uuid.UUID, 0, len(order.Items))
	for _, item := range order.Items {
		productIDs = append(productIDs, item.ProductID)
	}
	products, err := repo.FindProductsWithFiles(ctx, productIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}

	now := time.Now()
	tokens := make([]models.DownloadToken, 0, len(products))
	for _, product := range products {
		if existingToken, ok := issued[product.ID]; ok {
			tokens = append(tokens, existingToken)
			continue
		}
		// Products without deliverables get no token.
		if len(product.Files) == 0 {
			continue
		}

		value, err := security.GenerateDownloadToken()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate download token")
		}

		token := models.DownloadToken{
			OrderID:      order.ID,
			ProductID:    product.ID,
			Token:        value,
			MaxDownloads: s.maxDownloads(product),
			ExpiresAt:    now.Add(s.expiry(product)),
		}
		if err := repo.Create(ctx, &token); err != nil {
			if pkgerrors.IsUniqueViolation(err) {
				// concurrent issuance for the same order/product pair
				continue
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create download token")
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

func (s *service) FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	tokens, err := s.repo.FindByOrder(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load tokens")
	}
	return tokens, nil
}

func (s *service) FindByToken(ctx context.Context, token string) (*models.DownloadToken, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token required")
	}
	row, err := s.repo.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "download token not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
	}
	return row, nil
}

func (s *service) maxDownloads(product models.Product) int {
	if product.DownloadLimit > 0 {
		return product.DownloadLimit
	}
	if s.defaults.DefaultLimit > 0 {
		return s.defaults.DefaultLimit
	}
	return 5
}

func (s *service) expiry(product models.Product) time.Duration {
	if product.DownloadExpiryHours > 0 {
		return time.Duration(product.DownloadExpiryHours) * time.Hour
	}
	if d := s.defaults.DefaultExpiry(); d > 0 {
		return d
	}
	return 48 * time.Hour
}
