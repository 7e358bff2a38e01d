package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harmonia-digital/storefront-backend/pkg/types"
)

// Page is a slug-addressed editor page rendered by the storefront.
type Page struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug      string             `gorm:"column:slug;not null;uniqueIndex"`
	Title     string             `gorm:"column:title;not null"`
	Sections  types.PageSections `gorm:"column:sections;type:jsonb;serializer:json"`
	Published bool               `gorm:"column:published;not null;default:false"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
