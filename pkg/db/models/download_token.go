package models

import (
	"time"

	"github.com/google/uuid"
)

// DownloadToken is the bearer credential minted per (order, product) pair when
// payment completes. Exhaustion and expiry are evaluated at read time; rows
// are never swept.
type DownloadToken struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID        uuid.UUID  `gorm:"column:product_id;type:uuid;not null"`
	Token            string     `gorm:"column:token;not null;uniqueIndex"`
	DownloadCount    int        `gorm:"column:download_count;not null;default:0"`
	MaxDownloads     int        `gorm:"column:max_downloads;not null"`
	ExpiresAt        time.Time  `gorm:"column:expires_at;not null"`
	LastDownloadedAt *time.Time `gorm:"column:last_downloaded_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// Expired reports whether the token is past its expiry at the given instant.
func (t DownloadToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Exhausted reports whether the download quota has been fully consumed.
func (t DownloadToken) Exhausted() bool {
	return t.DownloadCount >= t.MaxDownloads
}
