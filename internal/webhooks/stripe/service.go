package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
)

type orderService interface {
	FindModelByTransactionRef(ctx context.Context, ref string) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionRef string) error
	FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error
}

type ServiceParams struct {
	Orders orderService
	Logger *logger.Logger
}

// Service settles orders from Stripe checkout lifecycle events.
type Service struct {
	orders orderService
	logg   *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, errors.New("orders service required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Service{orders: params.Orders, logg: params.Logger}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			// Async methods report completion before the charge clears; wait for
			// the async_payment_succeeded delivery.
			return nil
		}
		return s.settle(ctx, session)
	case stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.fail(ctx, session, "checkout session expired")
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.fail(ctx, session, "payment failed")
	default:
		s.logg.Debug(ctx, fmt.Sprintf("ignoring stripe event %s", event.Type))
		return nil
	}
}

func (s *Service) settle(ctx context.Context, session *stripe.CheckoutSession) error {
	order, err := s.lookupOrder(ctx, session)
	if err != nil {
		return err
	}

	ref := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref = session.PaymentIntent.ID
	}
	if err := s.orders.ConfirmPayment(ctx, order.ID, ref); err != nil {
		return err
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "stripe checkout settled")
	return nil
}

func (s *Service) fail(ctx context.Context, session *stripe.CheckoutSession, reason string) error {
	order, err := s.lookupOrder(ctx, session)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Expired sessions for purged orders are not actionable.
			return nil
		}
		return err
	}
	return s.orders.FailPayment(ctx, order.ID, reason)
}

// lookupOrder resolves the ledger row for a checkout session, preferring the
// client reference id stamped at session creation.
func (s *Service) lookupOrder(ctx context.Context, session *stripe.CheckoutSession) (*models.Order, error) {
	if session.ClientReferenceID != "" {
		if id, err := uuid.Parse(session.ClientReferenceID); err == nil {
			return &models.Order{ID: id}, nil
		}
	}
	order, err := s.orders.FindModelByTransactionRef(ctx, session.ID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
	}
	return &session, nil
}
