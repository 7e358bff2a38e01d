package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harmonia-digital/storefront-backend/pkg/enums"
)

// Order is the authoritative record of a purchase attempt. Item name/price are
// snapshots taken at creation time; later catalog edits never touch them.
type Order struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber    string              `gorm:"column:order_number;not null;uniqueIndex"`
	CustomerEmail  string              `gorm:"column:customer_email;not null;index"`
	CustomerName   *string             `gorm:"column:customer_name"`
	Items          []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Subtotal       decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	Tax            decimal.Decimal     `gorm:"column:tax;type:numeric(10,2);not null;default:0"`
	Total          decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	Currency       string              `gorm:"column:currency;not null;default:'EUR'"`
	PaymentMethod  enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus  enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending';index"`
	Status         enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	TransactionRef *string             `gorm:"column:transaction_ref"`
	PaidAt         *time.Time          `gorm:"column:paid_at"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	Notes          *string             `gorm:"column:notes"`
	IPAddress      *string             `gorm:"column:ip_address"`
	UserAgent      *string             `gorm:"column:user_agent"`
	Downloads      []DownloadToken     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime;index:idx_orders_created_at,sort:desc"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// OrderItem captures the snapshot of each purchased line.
type OrderItem struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID   uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	ProductName string          `gorm:"column:product_name;not null"`
	UnitPrice   decimal.Decimal `gorm:"column:unit_price;type:numeric(10,2);not null"`
	Quantity    int             `gorm:"column:quantity;not null;default:1"`
}

// LineTotal returns price × quantity for the snapshot.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
