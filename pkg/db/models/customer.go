package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer aggregates purchase history per email address. Created lazily on
// first order; no authentication is attached to it.
type Customer struct {
	ID         uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email      string     `gorm:"column:email;not null;uniqueIndex"`
	Name       *string    `gorm:"column:name"`
	OrderCount int        `gorm:"column:order_count;not null;default:0"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
