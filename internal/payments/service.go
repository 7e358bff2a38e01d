package payments

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/paypal"
)

// orderService is the slice of the order ledger the payments flow drives.
type orderService interface {
	FindModelByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindModelByTransactionRef(ctx context.Context, ref string) (*models.Order, error)
	AttachTransactionRef(ctx context.Context, orderID uuid.UUID, ref string) error
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionRef string) error
	FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error
}

// CheckoutSession is what the storefront needs to send the buyer to the provider.
type CheckoutSession struct {
	Provider    enums.PaymentMethod `json:"provider"`
	SessionID   string              `json:"sessionId"`
	RedirectURL string              `json:"redirectUrl"`
}

// Service starts provider checkouts for pending orders and settles PayPal captures.
type Service interface {
	StartCheckout(ctx context.Context, orderID uuid.UUID) (*CheckoutSession, error)
	CapturePayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error)
}

type ServiceParams struct {
	Orders     orderService
	Stripe     StripeCheckoutClient
	PayPal     PayPalOrdersClient
	Storefront config.StorefrontConfig
	Logger     *logger.Logger
}

type service struct {
	orders orderService
	stripe StripeCheckoutClient
	paypal PayPalOrdersClient
	store  config.StorefrontConfig
	logg   *logger.Logger
}

// NewService builds a payments service. Stripe and PayPal clients are each
// optional; starting a checkout for a provider that was not wired fails.
func NewService(params ServiceParams) (Service, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders: params.Orders,
		stripe: params.Stripe,
		paypal: params.PayPal,
		store:  params.Storefront,
		logg:   params.Logger,
	}, nil
}

func (s *service) StartCheckout(ctx context.Context, orderID uuid.UUID) (*CheckoutSession, error) {
	order, err := s.orders.FindModelByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is already paid")
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("order is %s and cannot be paid", order.PaymentStatus))
	}

	switch order.PaymentMethod {
	case enums.PaymentMethodStripe:
		return s.startStripe(ctx, order)
	case enums.PaymentMethodPayPal:
		return s.startPayPal(ctx, order)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", order.PaymentMethod))
	}
}

func (s *service) startStripe(ctx context.Context, order *models.Order) (*CheckoutSession, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe is not configured")
	}

	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(order.Items))
	for _, item := range order.Items {
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(item.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(order.Currency)),
				UnitAmount: stripe.Int64(minorUnits(item.UnitPrice)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.ProductName),
				},
			},
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(order.ID.String()),
		CustomerEmail:     stripe.String(order.CustomerEmail),
		LineItems:         lineItems,
		SuccessURL:        stripe.String(s.successURL(order) + "&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cancelURL(order)),
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("order_number", order.OrderNumber)

	sess, err := s.stripe.CreateSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}

	if err := s.orders.AttachTransactionRef(ctx, order.ID, sess.ID); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		Provider:    enums.PaymentMethodStripe,
		SessionID:   sess.ID,
		RedirectURL: sess.URL,
	}, nil
}

func (s *service) startPayPal(ctx context.Context, order *models.Order) (*CheckoutSession, error) {
	if s.paypal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal is not configured")
	}

	resp, err := s.paypal.CreateOrder(ctx,
		order.ID.String(),
		order.Currency,
		order.Total.StringFixed(2),
		fmt.Sprintf("Order %s", order.OrderNumber),
		s.successURL(order),
		s.cancelURL(order),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create paypal order")
	}

	if err := s.orders.AttachTransactionRef(ctx, order.ID, resp.ID); err != nil {
		return nil, err
	}

	return &CheckoutSession{
		Provider:    enums.PaymentMethodPayPal,
		SessionID:   resp.ID,
		RedirectURL: resp.ApproveLink(),
	}, nil
}

// CapturePayPalOrder settles an approved PayPal order when the buyer lands on
// the return URL. Webhook delivery may have captured it already; that shows up
// as an unchanged COMPLETED status and settles the ledger idempotently.
func (s *service) CapturePayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error) {
	if s.paypal == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "paypal is not configured")
	}
	ref := strings.TrimSpace(paypalOrderID)
	if ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paypal order id required")
	}

	order, err := s.orders.FindModelByTransactionRef(ctx, ref)
	if err != nil {
		return nil, err
	}

	resp, err := s.paypal.CaptureOrder(ctx, ref)
	if err != nil {
		// A concurrent capture already settled the order; re-read its state.
		resp, err = s.paypal.GetOrder(ctx, ref)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "capture paypal order")
		}
	}
	if resp.Status != paypal.OrderStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("paypal order is %s, expected %s", resp.Status, paypal.OrderStatusCompleted))
	}

	if err := s.orders.ConfirmPayment(ctx, order.ID, ref); err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "paypal capture settled")
	return s.orders.FindModelByID(ctx, order.ID)
}

func (s *service) successURL(order *models.Order) string {
	return fmt.Sprintf("%s/checkout/success?order=%s", strings.TrimRight(s.store.ClientURL, "/"), order.OrderNumber)
}

func (s *service) cancelURL(order *models.Order) string {
	return fmt.Sprintf("%s/checkout/cancel?order=%s", strings.TrimRight(s.store.ClientURL, "/"), order.OrderNumber)
}

// minorUnits converts a decimal major-unit amount to integer cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
