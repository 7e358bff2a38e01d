package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/harmonia-digital/storefront-backend/pkg/enums"
)

// Product represents one downloadable catalog listing.
type Product struct {
	ID                  uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name                string                `gorm:"column:name;not null"`
	Description         string                `gorm:"column:description;not null"`
	ShortDescription    *string               `gorm:"column:short_description"`
	Price               decimal.Decimal       `gorm:"column:price;type:numeric(10,2);not null"`
	Category            enums.ProductCategory `gorm:"column:category;type:text;not null;default:'audio'"`
	Status              enums.ProductStatus   `gorm:"column:status;type:text;not null;default:'draft'"`
	Features            pq.StringArray        `gorm:"column:features;type:text[];not null;default:ARRAY[]::text[]"`
	Tags                pq.StringArray        `gorm:"column:tags;type:text[];not null;default:ARRAY[]::text[]"`
	Duration            *string               `gorm:"column:duration"`
	DownloadLimit       int                   `gorm:"column:download_limit;not null;default:5"`
	DownloadExpiryHours int                   `gorm:"column:download_expiry_hours;not null;default:48"`
	SalesCount          int                   `gorm:"column:sales_count;not null;default:0"`
	Files               []ProductFile         `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Images              []ProductImage        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

// ProductFile is one deliverable stored in the object store.
type ProductFile struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID    uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	StorageKey   string    `gorm:"column:storage_key;not null"`
	OriginalName string    `gorm:"column:original_name;not null"`
	FileSize     int64     `gorm:"column:file_size;not null;default:0"`
	MimeType     string    `gorm:"column:mime_type;not null"`
	Position     int       `gorm:"column:position;not null;default:0"`
	UploadedAt   time.Time `gorm:"column:uploaded_at;autoCreateTime"`
}

// ProductImage is display-only artwork referenced by the storefront.
type ProductImage struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	URL       string    `gorm:"column:url;not null"`
	Alt       *string   `gorm:"column:alt"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false"`
}
