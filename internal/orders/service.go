package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/metrics"
	"github.com/harmonia-digital/storefront-backend/pkg/outbox"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
)

const orderNumberAttempts = 5

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ProductFinder resolves purchasable products for order creation.
type ProductFinder interface {
	FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	IncrementSalesCount(tx *gorm.DB, id uuid.UUID, delta int) error
}

// EntitlementIssuer mints download tokens once payment completes.
type EntitlementIssuer interface {
	IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.DownloadToken, error)
}

// CustomerRecorder upserts purchase history per email.
type CustomerRecorder interface {
	RecordOrderTx(ctx context.Context, tx *gorm.DB, email string, name *string, at time.Time) error
}

// Service defines order lifecycle operations.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderDetail, error)
	ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionRef string) error
	FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error
	AttachTransactionRef(ctx context.Context, orderID uuid.UUID, ref string) error
	GetByID(ctx context.Context, id uuid.UUID) (*OrderDetail, error)
	FindModelByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindModelByTransactionRef(ctx context.Context, ref string) (*models.Order, error)
	Lookup(ctx context.Context, orderNumber, email string) (*OrderDetail, error)
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error)
}

type service struct {
	repo       Repository
	products   ProductFinder
	tx         txRunner
	issuer     EntitlementIssuer
	customers  CustomerRecorder
	outbox     outboxPublisher
	store      config.StorefrontConfig
	metrics    *metrics.StoreMetrics
	tax        TaxCalculator
	namePrefix string
}

// NewService builds an order service with the required dependencies.
func NewService(
	repo Repository,
	products ProductFinder,
	tx txRunner,
	issuer EntitlementIssuer,
	customers CustomerRecorder,
	outboxSvc outboxPublisher,
	store config.StorefrontConfig,
	storeMetrics *metrics.StoreMetrics,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("entitlement issuer required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:       repo,
		products:   products,
		tx:         tx,
		issuer:     issuer,
		customers:  customers,
		outbox:     outboxSvc,
		store:      store,
		metrics:    storeMetrics,
		tax:        ZeroTax{},
		namePrefix: store.OrderNumberPrefix,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderDetail, error) {
	email := strings.ToLower(strings.TrimSpace(input.CustomerEmail))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer email required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", input.PaymentMethod))
	}

	// Merge duplicate product lines so snapshots stay one row per product.
	quantities := map[uuid.UUID]int{}
	ordered := []uuid.UUID{}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item product id required")
		}
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		if _, seen := quantities[item.ProductID]; !seen {
			ordered = append(ordered, item.ProductID)
		}
		quantities[item.ProductID] += qty
	}

	products, err := s.products.FindActiveByIDs(ctx, ordered)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := map[uuid.UUID]models.Product{}
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ordered {
		if _, ok := byID[id]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not available", id))
		}
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(ordered))
	for _, id := range ordered {
		p := byID[id]
		qty := quantities[id]
		items = append(items, models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			UnitPrice:   p.Price,
			Quantity:    qty,
		})
		subtotal = subtotal.Add(p.Price.Mul(decimal.NewFromInt(int64(qty))))
	}

	currency := s.store.Currency
	if currency == "" {
		currency = "EUR"
	}
	tax := s.tax.Tax(subtotal)

	order := &models.Order{
		CustomerEmail: email,
		CustomerName:  input.CustomerName,
		Items:         items,
		Subtotal:      subtotal,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		Currency:      currency,
		PaymentMethod: input.PaymentMethod,
		PaymentStatus: enums.PaymentStatusPending,
		Status:        enums.OrderStatusPending,
		Notes:         input.Notes,
		IPAddress:     input.IPAddress,
		UserAgent:     input.UserAgent,
	}

	// The number is random per month; retry on the rare collision.
	var createErr error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		number, err := GenerateOrderNumber(s.namePrefix, time.Now())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order number")
		}
		order.OrderNumber = number
		if _, createErr = s.repo.Create(ctx, order); createErr == nil {
			break
		}
		if !pkgerrors.IsUniqueViolation(createErr) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "create order")
		}
	}
	if createErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, createErr, "allocate order number")
	}

	s.metrics.IncOrderCreated(order.PaymentMethod.String())

	detail := toDetail(order, nil)
	return &detail, nil
}

// ConfirmPayment marks the order paid exactly once. Replayed confirmations
// are absorbed; entitlements and side effects run only on the transition.
func (s *service) ConfirmPayment(ctx context.Context, orderID uuid.UUID, transactionRef string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		if order.PaymentStatus == enums.PaymentStatusCompleted {
			return nil
		}

		now := time.Now()
		updates := map[string]any{
			"payment_status": enums.PaymentStatusCompleted,
			"status":         enums.OrderStatusCompleted,
			"paid_at":        now,
		}
		if ref := strings.TrimSpace(transactionRef); ref != "" {
			updates["transaction_ref"] = ref
		}

		rows, err := repo.UpdateConditional(ctx, order.ID, "payment_status <> ?", []any{enums.PaymentStatusCompleted}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment")
		}
		if rows == 0 {
			// a concurrent confirmation already won
			return nil
		}

		order.PaymentStatus = enums.PaymentStatusCompleted
		order.Status = enums.OrderStatusCompleted
		order.PaidAt = &now

		if _, err := s.issuer.IssueTx(ctx, tx, order); err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := s.products.IncrementSalesCount(tx, item.ProductID, item.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment sales count")
			}
		}

		if s.customers != nil {
			if err := s.customers.RecordOrderTx(ctx, tx, order.CustomerEmail, order.CustomerName, now); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record customer")
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: PaidEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerEmail: order.CustomerEmail,
				CustomerName:  order.CustomerName,
				Total:         order.Total,
				Currency:      order.Currency,
				PaidAt:        now,
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue paid event")
		}
		return nil
	})
}

// FailPayment records a failed attempt. Completed orders are never
// downgraded; repeated failures are absorbed.
func (s *service) FailPayment(ctx context.Context, orderID uuid.UUID, reason string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		switch order.PaymentStatus {
		case enums.PaymentStatusCompleted, enums.PaymentStatusFailed:
			return nil
		}

		updates := map[string]any{
			"payment_status": enums.PaymentStatusFailed,
			"status":         enums.OrderStatusCancelled,
		}
		if trimmed := strings.TrimSpace(reason); trimmed != "" {
			updates["failure_reason"] = trimmed
		}

		rows, err := repo.UpdateConditional(ctx, order.ID, "payment_status = ?", []any{enums.PaymentStatusPending}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fail payment")
		}
		if rows == 0 {
			return nil
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: FailedEvent{
				OrderID:       order.ID,
				OrderNumber:   order.OrderNumber,
				CustomerEmail: order.CustomerEmail,
				Reason:        strings.TrimSpace(reason),
			},
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue failed event")
		}
		return nil
	})
}

// AttachTransactionRef records the provider reference created at checkout so
// webhooks can find the order later.
func (s *service) AttachTransactionRef(ctx context.Context, orderID uuid.UUID, ref string) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction ref required")
	}
	rows, err := s.repo.UpdateConditional(ctx, orderID, "", nil, map[string]any{"transaction_ref": trimmed})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach transaction ref")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*OrderDetail, error) {
	order, err := s.FindModelByID(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := toDetail(order, order.Downloads)
	return &detail, nil
}

func (s *service) FindModelByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) FindModelByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction ref required")
	}
	order, err := s.repo.FindByTransactionRef(ctx, trimmed)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// Lookup lets a customer retrieve an order by number plus the email it was
// placed under. Both must match; mismatches read as not found.
func (s *service) Lookup(ctx context.Context, orderNumber, email string) (*OrderDetail, error) {
	number := strings.TrimSpace(orderNumber)
	normalizedEmail := strings.ToLower(strings.TrimSpace(email))
	if number == "" || normalizedEmail == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number and email required")
	}

	order, err := s.repo.FindByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !strings.EqualFold(order.CustomerEmail, normalizedEmail) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "email does not match this order")
	}

	detail := toDetail(order, order.Downloads)
	return &detail, nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	list, err := s.repo.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func toDetail(order *models.Order, downloads []models.DownloadToken) OrderDetail {
	detail := OrderDetail{
		ID:            order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		CustomerName:  order.CustomerName,
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Total:         order.Total,
		Currency:      order.Currency,
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Status:        order.Status,
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
	}

	names := map[uuid.UUID]string{}
	for _, item := range order.Items {
		names[item.ProductID] = item.ProductName
		detail.Items = append(detail.Items, ItemDetail{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineTotal:   item.LineTotal(),
		})
	}

	// Tokens are only surfaced on paid orders.
	if order.PaymentStatus == enums.PaymentStatusCompleted {
		for _, token := range downloads {
			detail.Downloads = append(detail.Downloads, DownloadDetail{
				Token:         token.Token,
				ProductID:     token.ProductID,
				ProductName:   names[token.ProductID],
				DownloadCount: token.DownloadCount,
				MaxDownloads:  token.MaxDownloads,
				ExpiresAt:     token.ExpiresAt,
			})
		}
	}
	return detail
}
