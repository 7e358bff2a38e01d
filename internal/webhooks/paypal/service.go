package paypalwebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/paypal"
)

const (
	eventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	eventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
	eventCaptureDenied   = "PAYMENT.CAPTURE.DENIED"
)

type orderService interface {
	FindModelByTransactionRef(ctx context.Context, ref string) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionRef string) error
	FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error
}

type orderCapturer interface {
	CapturePayPalOrder(ctx context.Context, paypalOrderID string) (*models.Order, error)
}

type ServiceParams struct {
	Orders   orderService
	Payments orderCapturer
	Logger   *logger.Logger
}

// Service settles orders from PayPal webhook deliveries.
type Service struct {
	orders   orderService
	payments orderCapturer
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, errors.New("orders service required")
	}
	if params.Payments == nil {
		return nil, errors.New("payments service required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{orders: params.Orders, payments: params.Payments, logg: params.Logger}, nil
}

// captureResource is the slice of a capture payload we consume. The parent
// order id arrives under supplementary_data on capture events.
type captureResource struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

func (s *Service) HandleEvent(ctx context.Context, event *paypal.WebhookEvent) error {
	if event == nil || len(event.Resource) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "paypal event resource required")
	}

	switch event.EventType {
	case eventOrderApproved:
		var resource paypal.OrderResponse
		if err := json.Unmarshal(event.Resource, &resource); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal order event")
		}
		if _, err := s.payments.CapturePayPalOrder(ctx, resource.ID); err != nil {
			return err
		}
		return nil
	case eventCaptureComplete:
		resource, err := decodeCapture(event)
		if err != nil {
			return err
		}
		order, err := s.orders.FindModelByTransactionRef(ctx, resource.SupplementaryData.RelatedIDs.OrderID)
		if err != nil {
			return err
		}
		return s.orders.ConfirmPayment(ctx, order.ID, resource.SupplementaryData.RelatedIDs.OrderID)
	case eventCaptureDenied:
		resource, err := decodeCapture(event)
		if err != nil {
			return err
		}
		order, err := s.orders.FindModelByTransactionRef(ctx, resource.SupplementaryData.RelatedIDs.OrderID)
		if err != nil {
			return err
		}
		return s.orders.FailPayment(ctx, order.ID, "payment capture denied")
	default:
		s.logg.Debug(ctx, fmt.Sprintf("ignoring paypal event %s", event.EventType))
		return nil
	}
}

func decodeCapture(event *paypal.WebhookEvent) (*captureResource, error) {
	var resource captureResource
	if err := json.Unmarshal(event.Resource, &resource); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode paypal capture event")
	}
	if resource.SupplementaryData.RelatedIDs.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "capture event missing order id")
	}
	return &resource, nil
}
