package payments

import (
	"context"

	"github.com/harmonia-digital/storefront-backend/pkg/paypal"
)

// PayPalOrdersClient exposes the subset of PayPal operations required by the payments service.
type PayPalOrdersClient interface {
	CreateOrder(ctx context.Context, referenceID, currency, value, description, returnURL, cancelURL string) (*paypal.OrderResponse, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.OrderResponse, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.OrderResponse, error)
}
