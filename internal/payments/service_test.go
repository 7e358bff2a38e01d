package payments

import (
	"context"
	"errors"
	"strings"
	"testing"

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

type stubOrders struct {
	order        *models.Order
	attachedRefs []string
	confirmed    []string
	failed       []string
}

func (o *stubOrders) FindModelByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if o.order == nil || o.order.ID != id {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return o.order, nil
}

func (o *stubOrders) FindModelByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	if o.order == nil || o.order.TransactionRef == nil || *o.order.TransactionRef != ref {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return o.order, nil
}

func (o *stubOrders) AttachTransactionRef(ctx context.Context, orderID uuid.UUID, ref string) error {
	o.attachedRefs = append(o.attachedRefs, ref)
	return nil
}

func (o *stubOrders) ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionRef string) error {
	o.confirmed = append(o.confirmed, transactionRef)
	return nil
}

func (o *stubOrders) FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error {
	o.failed = append(o.failed, reason)
	return nil
}

type stubStripe struct {
	params  *stripe.CheckoutSessionParams
	session *stripe.CheckoutSession
	err     error
}

func (s *stubStripe) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.params = params
	if s.err != nil {
		return nil, s.err
	}
	return s.session, nil
}

type stubPayPal struct {
	created    *paypal.OrderResponse
	captured   *paypal.OrderResponse
	captureErr error
	fetched    *paypal.OrderResponse
	fetchErr   error
}

func (p *stubPayPal) CreateOrder(ctx context.Context, referenceID, currency, value, description, returnURL, cancelURL string) (*paypal.OrderResponse, error) {
	return p.created, nil
}

func (p *stubPayPal) GetOrder(ctx context.Context, orderID string) (*paypal.OrderResponse, error) {
	if p.fetchErr != nil {
		return nil, p.fetchErr
	}
	return p.fetched, nil
}

func (p *stubPayPal) CaptureOrder(ctx context.Context, orderID string) (*paypal.OrderResponse, error) {
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	return p.captured, nil
}

func price(value string) decimal.Decimal {
	d, _ := decimal.NewFromString(value)
	return d
}

func strPtr(s string) *string { return &s }

func pendingOrder(method enums.PaymentMethod) *models.Order {
	return &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "HT25090001",
		CustomerEmail: "buyer@example.com",
		Currency:      "EUR",
		PaymentMethod: method,
		PaymentStatus: enums.PaymentStatusPending,
		Items: []models.OrderItem{
			{ProductID: uuid.New(), ProductName: "Sample Pack", UnitPrice: price("19.90"), Quantity: 2},
		},
		Subtotal: price("39.80"),
		Total:    price("39.80"),
	}
}

func newTestService(t *testing.T, orders *stubOrders, stripeClient StripeCheckoutClient, paypalClient PayPalOrdersClient) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders:     orders,
		Stripe:     stripeClient,
		PayPal:     paypalClient,
		Storefront: config.StorefrontConfig{ClientURL: "https://shop.example.com/"},
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestStartCheckoutStripe(t *testing.T) {
	orders := &stubOrders{order: pendingOrder(enums.PaymentMethodStripe)}
	stripeStub := &stubStripe{session: &stripe.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.com/pay/cs_test_123"}}
	svc := newTestService(t, orders, stripeStub, nil)

	sess, err := svc.StartCheckout(context.Background(), orders.order.ID)
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if sess.Provider != enums.PaymentMethodStripe || sess.SessionID != "cs_test_123" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if sess.RedirectURL != "https://checkout.stripe.com/pay/cs_test_123" {
		t.Fatalf("unexpected redirect %q", sess.RedirectURL)
	}

	params := stripeStub.params
	if len(params.LineItems) != 1 {
		t.Fatalf("expected one line item, got %d", len(params.LineItems))
	}
	item := params.LineItems[0]
	if *item.PriceData.UnitAmount != 1990 {
		t.Fatalf("expected 1990 cents, got %d", *item.PriceData.UnitAmount)
	}
	if *item.PriceData.Currency != "eur" {
		t.Fatalf("expected lowercase currency, got %q", *item.PriceData.Currency)
	}
	if *item.Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", *item.Quantity)
	}
	if *params.ClientReferenceID != orders.order.ID.String() {
		t.Fatalf("client reference must carry the order id")
	}
	if !strings.Contains(*params.SuccessURL, "session_id={CHECKOUT_SESSION_ID}") {
		t.Fatalf("success url missing session placeholder: %q", *params.SuccessURL)
	}
	if len(orders.attachedRefs) != 1 || orders.attachedRefs[0] != "cs_test_123" {
		t.Fatalf("session id not attached to the order: %v", orders.attachedRefs)
	}
}

func TestStartCheckoutAlreadyPaid(t *testing.T) {
	order := pendingOrder(enums.PaymentMethodStripe)
	order.PaymentStatus = enums.PaymentStatusCompleted
	orders := &stubOrders{order: order}
	svc := newTestService(t, orders, &stubStripe{}, nil)

	_, err := svc.StartCheckout(context.Background(), order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict for a paid order, got %v", err)
	}
}

func TestStartCheckoutStripeNotConfigured(t *testing.T) {
	orders := &stubOrders{order: pendingOrder(enums.PaymentMethodStripe)}
	svc := newTestService(t, orders, nil, nil)

	_, err := svc.StartCheckout(context.Background(), orders.order.ID)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestStartCheckoutPayPal(t *testing.T) {
	orders := &stubOrders{order: pendingOrder(enums.PaymentMethodPayPal)}
	paypalStub := &stubPayPal{created: &paypal.OrderResponse{
		ID:     "5O190127TN364715T",
		Status: "CREATED",
		Links:  []paypal.Link{{Href: "https://www.paypal.com/checkoutnow?token=5O190127TN364715T", Rel: "approve"}},
	}}
	svc := newTestService(t, orders, nil, paypalStub)

	sess, err := svc.StartCheckout(context.Background(), orders.order.ID)
	if err != nil {
		t.Fatalf("start checkout: %v", err)
	}
	if sess.Provider != enums.PaymentMethodPayPal || sess.SessionID != "5O190127TN364715T" {
		t.Fatalf("unexpected session %+v", sess)
	}
	if !strings.Contains(sess.RedirectURL, "checkoutnow") {
		t.Fatalf("expected approve link, got %q", sess.RedirectURL)
	}
	if len(orders.attachedRefs) != 1 || orders.attachedRefs[0] != "5O190127TN364715T" {
		t.Fatalf("paypal order id not attached: %v", orders.attachedRefs)
	}
}

func TestCapturePayPalOrderSettles(t *testing.T) {
	order := pendingOrder(enums.PaymentMethodPayPal)
	order.TransactionRef = strPtr("5O190127TN364715T")
	orders := &stubOrders{order: order}
	paypalStub := &stubPayPal{captured: &paypal.OrderResponse{ID: "5O190127TN364715T", Status: paypal.OrderStatusCompleted}}
	svc := newTestService(t, orders, nil, paypalStub)

	settled, err := svc.CapturePayPalOrder(context.Background(), "5O190127TN364715T")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if settled.ID != order.ID {
		t.Fatalf("unexpected order returned")
	}
	if len(orders.confirmed) != 1 || orders.confirmed[0] != "5O190127TN364715T" {
		t.Fatalf("expected payment confirmation, got %v", orders.confirmed)
	}
}

func TestCapturePayPalOrderFallsBackToGet(t *testing.T) {
	order := pendingOrder(enums.PaymentMethodPayPal)
	order.TransactionRef = strPtr("5O190127TN364715T")
	orders := &stubOrders{order: order}
	paypalStub := &stubPayPal{
		captureErr: errors.New("ORDER_ALREADY_CAPTURED"),
		fetched:    &paypal.OrderResponse{ID: "5O190127TN364715T", Status: paypal.OrderStatusCompleted},
	}
	svc := newTestService(t, orders, nil, paypalStub)

	if _, err := svc.CapturePayPalOrder(context.Background(), "5O190127TN364715T"); err != nil {
		t.Fatalf("capture with fallback: %v", err)
	}
	if len(orders.confirmed) != 1 {
		t.Fatalf("expected confirmation after fallback read")
	}
}

func TestCapturePayPalOrderRejectsIncomplete(t *testing.T) {
	order := pendingOrder(enums.PaymentMethodPayPal)
	order.TransactionRef = strPtr("5O190127TN364715T")
	orders := &stubOrders{order: order}
	paypalStub := &stubPayPal{captured: &paypal.OrderResponse{ID: "5O190127TN364715T", Status: "PAYER_ACTION_REQUIRED"}}
	svc := newTestService(t, orders, nil, paypalStub)

	_, err := svc.CapturePayPalOrder(context.Background(), "5O190127TN364715T")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected rejection of incomplete order, got %v", err)
	}
	if len(orders.confirmed) != 0 {
		t.Fatalf("order must not be confirmed")
	}
}

func TestMinorUnits(t *testing.T) {
	cases := map[string]int64{
		"19.90": 1990,
		"0.99":  99,
		"10":    1000,
		"19.99": 1999,
	}
	for input, want := range cases {
		if got := minorUnits(price(input)); got != want {
			t.Fatalf("minorUnits(%s) = %d, want %d", input, got, want)
		}
	}
}
