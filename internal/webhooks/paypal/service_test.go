package paypalwebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/paypal"
)

type stubOrders struct {
	order     *models.Order
	confirmed []string
	failed    []string
}

func (o *stubOrders) FindModelByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	if o.order == nil || o.order.TransactionRef == nil || *o.order.TransactionRef != ref {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return o.order, nil
}

func (o *stubOrders) ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionRef string) error {
	o.confirmed = append(o.confirmed, transactionRef)
	return nil
}

func (o *stubOrders) FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error {
	o.failed = append(o.failed, reason)
	return nil
}

type stubCapturer struct {
	captured []string
	err      error
}

func (c *stubCapturer) CapturePayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error) {
	c.captured = append(c.captured, paypalOrderID)
	if c.err != nil {
		return nil, c.err
	}
	return &models.Order{ID: uuid.New()}, nil
}

func newTestService(t *testing.T, orders *stubOrders, payments *stubCapturer) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Orders:   orders,
		Payments: payments,
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func webhookEvent(t *testing.T, eventType string, resource any) *paypal.WebhookEvent {
	t.Helper()
	raw, err := json.Marshal(resource)
	if err != nil {
		t.Fatalf("marshal resource: %v", err)
	}
	return &paypal.WebhookEvent{
		ID:        "WH-TEST-1",
		EventType: eventType,
		Resource:  raw,
	}
}

func captureBody(captureID, orderID string) map[string]any {
	return map[string]any{
		"id":     captureID,
		"status": "COMPLETED",
		"supplementary_data": map[string]any{
			"related_ids": map[string]any{"order_id": orderID},
		},
	}
}

func TestOrderApprovedTriggersCapture(t *testing.T) {
	payments := &stubCapturer{}
	svc := newTestService(t, &stubOrders{}, payments)

	event := webhookEvent(t, "CHECKOUT.ORDER.APPROVED", paypal.OrderResponse{ID: "5O190127TN364715T", Status: "APPROVED"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(payments.captured) != 1 || payments.captured[0] != "5O190127TN364715T" {
		t.Fatalf("expected capture of approved order, got %v", payments.captured)
	}
}

func TestCaptureCompletedConfirmsOrder(t *testing.T) {
	ref := "5O190127TN364715T"
	orders := &stubOrders{order: &models.Order{ID: uuid.New(), TransactionRef: &ref}}
	svc := newTestService(t, orders, &stubCapturer{})

	event := webhookEvent(t, "PAYMENT.CAPTURE.COMPLETED", captureBody("3C679366HH908993F", ref))
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(orders.confirmed) != 1 || orders.confirmed[0] != ref {
		t.Fatalf("expected confirmation via related order id, got %v", orders.confirmed)
	}
}

func TestCaptureDeniedFailsOrder(t *testing.T) {
	ref := "5O190127TN364715T"
	orders := &stubOrders{order: &models.Order{ID: uuid.New(), TransactionRef: &ref}}
	svc := newTestService(t, orders, &stubCapturer{})

	event := webhookEvent(t, "PAYMENT.CAPTURE.DENIED", captureBody("3C679366HH908993F", ref))
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(orders.failed) != 1 || orders.failed[0] != "payment capture denied" {
		t.Fatalf("expected denial recorded, got %v", orders.failed)
	}
}

func TestCaptureMissingOrderIDRejected(t *testing.T) {
	svc := newTestService(t, &stubOrders{}, &stubCapturer{})

	event := webhookEvent(t, "PAYMENT.CAPTURE.COMPLETED", map[string]any{"id": "3C679366HH908993F", "status": "COMPLETED"})
	err := svc.HandleEvent(context.Background(), event)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for missing order id, got %v", err)
	}
}

func TestUnknownEventIgnored(t *testing.T) {
	orders := &stubOrders{}
	payments := &stubCapturer{}
	svc := newTestService(t, orders, payments)

	event := webhookEvent(t, "BILLING.SUBSCRIPTION.CREATED", map[string]any{"id": "sub-1"})
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown events must be ignored, got %v", err)
	}
	if len(orders.confirmed)+len(orders.failed)+len(payments.captured) != 0 {
		t.Fatalf("unknown events must be side-effect free")
	}
}

func TestNilEventRejected(t *testing.T) {
	svc := newTestService(t, &stubOrders{}, &stubCapturer{})
	err := svc.HandleEvent(context.Background(), nil)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
