package downloads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/metrics"
	"github.com/harmonia-digital/storefront-backend/pkg/storage/gcs"
)

// TokenStore reads and consumes download tokens.
type TokenStore interface {
	FindByToken(ctx context.Context, token string) (*models.DownloadToken, error)
	FindProductsWithFiles(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindOrder(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ConsumeDownload(ctx context.Context, tokenID uuid.UUID, at time.Time) (bool, error)
}

// URLSigner mints time-limited object URLs.
type URLSigner interface {
	SignedDownloadURL(object string, opts gcs.SignedURLOptions) (string, error)
}

// FileInfo describes one downloadable file behind a token.
type FileInfo struct {
	Index        int    `json:"index"`
	OriginalName string `json:"original_name"`
	FileSize     int64  `json:"file_size"`
	MimeType     string `json:"mime_type"`
}

// Status is the token state returned by Resolve.
type Status struct {
	OrderNumber   string     `json:"order_number"`
	CustomerEmail string     `json:"customer_email"`
	ProductID     uuid.UUID  `json:"product_id"`
	ProductName   string     `json:"product_name"`
	Files         []FileInfo `json:"files"`
	DownloadCount int        `json:"download_count"`
	MaxDownloads  int        `json:"max_downloads"`
	Remaining     int        `json:"remaining"`
	ExpiresAt     time.Time  `json:"expires_at"`
}

// FileLink is the signed URL handed to the customer.
type FileLink struct {
	URL          string    `json:"url"`
	OriginalName string    `json:"original_name"`
	MimeType     string    `json:"mime_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	Remaining    int       `json:"remaining"`
}

// Service gates access to purchased files.
type Service interface {
	Resolve(ctx context.Context, token string) (*Status, error)
	RetrieveFile(ctx context.Context, token string, fileIndex int) (*FileLink, error)
}

type service struct {
	store   TokenStore
	signer  URLSigner
	cfg     config.DownloadsConfig
	metrics *metrics.StoreMetrics
	now     func() time.Time
}

// NewService builds a download gate with the required dependencies.
func NewService(store TokenStore, signer URLSigner, cfg config.DownloadsConfig, storeMetrics *metrics.StoreMetrics) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("token store required")
	}
	if signer == nil {
		return nil, fmt.Errorf("url signer required")
	}
	return &service{
		store:   store,
		signer:  signer,
		cfg:     cfg,
		metrics: storeMetrics,
		now:     time.Now,
	}, nil
}

// Resolve reports the state of a token. Expiry is checked before anything
// else; an expired token reads as gone no matter how many downloads remain.
func (s *service) Resolve(ctx context.Context, tokenValue string) (*Status, error) {
	token, product, err := s.loadToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	order, err := s.store.FindOrder(ctx, token.OrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	status := &Status{
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		ProductID:     product.ID,
		ProductName:   product.Name,
		DownloadCount: token.DownloadCount,
		MaxDownloads:  token.MaxDownloads,
		Remaining:     remaining(token),
		ExpiresAt:     token.ExpiresAt,
	}
	for i, file := range product.Files {
		status.Files = append(status.Files, FileInfo{
			Index:        i,
			OriginalName: file.OriginalName,
			FileSize:     file.FileSize,
			MimeType:     file.MimeType,
		})
	}
	return status, nil
}

// RetrieveFile hands out one signed URL. The download counter moves only
// after the URL is signed, and the increment is conditional on the quota so
// two racing requests cannot both slip past the last slot.
func (s *service) RetrieveFile(ctx context.Context, tokenValue string, fileIndex int) (*FileLink, error) {
	token, product, err := s.loadToken(ctx, tokenValue)
	if err != nil {
		return nil, err
	}

	if token.Exhausted() {
		s.metrics.IncDownload("limit_exceeded")
		return nil, pkgerrors.New(pkgerrors.CodeDownloadLimit, "download limit reached")
	}

	if fileIndex < 0 || fileIndex >= len(product.Files) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "file index out of range").WithDetails(map[string]any{"file_index": fileIndex})
	}
	file := product.Files[fileIndex]

	ttl := s.cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := s.now()

	url, err := s.signer.SignedDownloadURL(file.StorageKey, gcs.SignedURLOptions{
		Expires:             ttl,
		ResponseDisposition: fmt.Sprintf("attachment; filename=%q", file.OriginalName),
		Now:                 now,
	})
	if err != nil {
		s.metrics.IncDownload("storage_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign download url")
	}

	consumed, err := s.store.ConsumeDownload(ctx, token.ID, now)
	if err != nil {
		s.metrics.IncDownload("storage_error")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record download")
	}
	if !consumed {
		// lost the race for the final slot
		s.metrics.IncDownload("limit_exceeded")
		return nil, pkgerrors.New(pkgerrors.CodeDownloadLimit, "download limit reached")
	}

	s.metrics.IncDownload("ok")
	return &FileLink{
		URL:          url,
		OriginalName: file.OriginalName,
		MimeType:     file.MimeType,
		ExpiresAt:    now.Add(ttl),
		Remaining:    token.MaxDownloads - token.DownloadCount - 1,
	}, nil
}

func (s *service) loadToken(ctx context.Context, tokenValue string) (*models.DownloadToken, *models.Product, error) {
	if tokenValue == "" {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "token required")
	}

	token, err := s.store.FindByToken(ctx, tokenValue)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "download token not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load token")
	}

	if token.Expired(s.now()) {
		s.metrics.IncDownload("expired")
		return nil, nil, pkgerrors.New(pkgerrors.CodeTokenExpired, "download link expired")
	}

	products, err := s.store.FindProductsWithFiles(ctx, []uuid.UUID{token.ProductID})
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if len(products) == 0 {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "product no longer exists")
	}

	return token, &products[0], nil
}

func remaining(token *models.DownloadToken) int {
	r := token.MaxDownloads - token.DownloadCount
	if r < 0 {
		return 0
	}
	return r
}
