package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harmonia-digital/storefront-backend/pkg/enums"
)

// ListFilters describe the inputs supported by the public product list.
type ListFilters struct {
	Category *enums.ProductCategory
	Query    string
	// IncludeUnpublished is set only by back-office callers.
	IncludeUnpublished bool
}

// FileSummary exposes deliverable metadata without the storage key.
type FileSummary struct {
	ID           uuid.UUID `json:"id"`
	OriginalName string    `json:"original_name"`
	FileSize     int64     `json:"file_size"`
	MimeType     string    `json:"mime_type"`
	Position     int       `json:"position"`
}

// ImageSummary exposes display artwork.
type ImageSummary struct {
	ID        uuid.UUID `json:"id"`
	URL       string    `json:"url"`
	Alt       *string   `json:"alt,omitempty"`
	IsPrimary bool      `json:"is_primary"`
}

// ProductSummary is the storefront list/detail shape.
type ProductSummary struct {
	ID               uuid.UUID             `json:"id"`
	Name             string                `json:"name"`
	Description      string                `json:"description"`
	ShortDescription *string               `json:"short_description,omitempty"`
	Price            decimal.Decimal       `json:"price"`
	Category         enums.ProductCategory `json:"category"`
	Status           enums.ProductStatus   `json:"status"`
	Features         []string              `json:"features"`
	Tags             []string              `json:"tags"`
	Duration         *string               `json:"duration,omitempty"`
	FileCount        int                   `json:"file_count"`
	Images           []ImageSummary        `json:"images"`
	CreatedAt        time.Time             `json:"created_at"`
}

// ProductList wraps the paginated products plus the next page cursor.
type ProductList struct {
	Products   []ProductSummary `json:"products"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

// CreateProductInput captures back-office product creation.
type CreateProductInput struct {
	Name                string
	Description         string
	ShortDescription    *string
	Price               decimal.Decimal
	Category            enums.ProductCategory
	Status              enums.ProductStatus
	Features            []string
	Tags                []string
	Duration            *string
	DownloadLimit       int
	DownloadExpiryHours int
}

// UpdateProductInput carries partial updates; nil fields are left untouched.
type UpdateProductInput struct {
	Name                *string
	Description         *string
	ShortDescription    *string
	Price               *decimal.Decimal
	Category            *enums.ProductCategory
	Status              *enums.ProductStatus
	Features            []string
	Tags                []string
	Duration            *string
	DownloadLimit       *int
	DownloadExpiryHours *int
}

// AttachFileInput registers an uploaded deliverable against a product.
type AttachFileInput struct {
	ProductID    uuid.UUID
	StorageKey   string
	OriginalName string
	FileSize     int64
	MimeType     string
	Position     int
}
