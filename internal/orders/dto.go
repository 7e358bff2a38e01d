package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harmonia-digital/storefront-backend/pkg/enums"
)

// CreateOrderItemInput is one requested line in a new order.
type CreateOrderItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput captures everything needed to open an order.
type CreateOrderInput struct {
	CustomerEmail string
	CustomerName  *string
	Items         []CreateOrderItemInput
	PaymentMethod enums.PaymentMethod
	Notes         *string
	IPAddress     *string
	UserAgent     *string
}

// ItemDetail is the snapshot line returned to clients.
type ItemDetail struct {
	ProductID   uuid.UUID       `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

// DownloadDetail exposes an issued download token to the order owner.
type DownloadDetail struct {
	Token         string    `json:"token"`
	ProductID     uuid.UUID `json:"product_id"`
	ProductName   string    `json:"product_name"`
	DownloadCount int       `json:"download_count"`
	MaxDownloads  int       `json:"max_downloads"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// OrderDetail is the full customer-facing order shape.
type OrderDetail struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	CustomerEmail string              `json:"customer_email"`
	CustomerName  *string             `json:"customer_name,omitempty"`
	Items         []ItemDetail        `json:"items"`
	Subtotal      decimal.Decimal     `json:"subtotal"`
	Tax           decimal.Decimal     `json:"tax"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Status        enums.OrderStatus   `json:"status"`
	PaidAt        *time.Time          `json:"paid_at,omitempty"`
	Downloads     []DownloadDetail    `json:"downloads,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
}

// ListFilters describe the inputs supported by the back-office order list.
type ListFilters struct {
	PaymentStatus *enums.PaymentStatus
	Status        *enums.OrderStatus
	Email         string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// OrderSummary is the condensed back-office list row.
type OrderSummary struct {
	ID            uuid.UUID           `json:"id"`
	OrderNumber   string              `json:"order_number"`
	CustomerEmail string              `json:"customer_email"`
	Total         decimal.Decimal     `json:"total"`
	Currency      string              `json:"currency"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Status        enums.OrderStatus   `json:"status"`
	ItemCount     int                 `json:"item_count"`
	CreatedAt     time.Time           `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PaidEvent is emitted through the outbox when payment completes.
type PaidEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	CustomerEmail string          `json:"customer_email"`
	CustomerName  *string         `json:"customer_name,omitempty"`
	Total         decimal.Decimal `json:"total"`
	Currency      string          `json:"currency"`
	PaidAt        time.Time       `json:"paid_at"`
}

// FailedEvent is emitted through the outbox when payment fails.
type FailedEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	OrderNumber   string    `json:"order_number"`
	CustomerEmail string    `json:"customer_email"`
	Reason        string    `json:"reason,omitempty"`
}
