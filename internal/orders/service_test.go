package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/outbox"
	"github.com/harmonia-digital/storefront-backend/pkg/pagination"
)

type stubRepo struct {
	orders        map[uuid.UUID]*models.Order
	byNumber      map[string]*models.Order
	byRef         map[string]*models.Order
	createErrs    []error
	created       []models.Order
	updates       []map[string]any
	updateRows    int64
	updateRowsSet bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		orders:   map[uuid.UUID]*models.Order{},
		byNumber: map[string]*models.Order{},
		byRef:    map[string]*models.Order{},
	}
}

func (r *stubRepo) WithTx(tx *gorm.DB) Repository { return r }

func (r *stubRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	r.created = append(r.created, *order)
	r.orders[order.ID] = order
	r.byNumber[order.OrderNumber] = order
	return order, nil
}

func (r *stubRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (r *stubRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *stubRepo) FindByNumber(ctx context.Context, number string) (*models.Order, error) {
	order, ok := r.byNumber[number]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (r *stubRepo) FindByTransactionRef(ctx context.Context, ref string) (*models.Order, error) {
	order, ok := r.byRef[ref]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (r *stubRepo) List(ctx context.Context, params pagination.Params, filters ListFilters) (*OrderList, error) {
	return &OrderList{}, nil
}

func (r *stubRepo) UpdateConditional(ctx context.Context, id uuid.UUID, condition string, args []any, updates map[string]any) (int64, error) {
	if _, ok := r.orders[id]; !ok {
		return 0, nil
	}
	r.updates = append(r.updates, updates)
	if r.updateRowsSet {
		return r.updateRows, nil
	}
	return 1, nil
}

type stubProducts struct {
	products   []models.Product
	salesCalls []uuid.UUID
}

func (p *stubProducts) FindActiveByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	return p.products, nil
}

func (p *stubProducts) IncrementSalesCount(tx *gorm.DB, id uuid.UUID, delta int) error {
	p.salesCalls = append(p.salesCalls, id)
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubIssuer struct {
	calls  int
	tokens []models.DownloadToken
	err    error
}

func (i *stubIssuer) IssueTx(ctx context.Context, tx *gorm.DB, order *models.Order) ([]models.DownloadToken, error) {
	i.calls++
	return i.tokens, i.err
}

type stubCustomers struct {
	recorded []string
}

func (c *stubCustomers) RecordOrderTx(ctx context.Context, tx *gorm.DB, email string, name *string, at time.Time) error {
	c.recorded = append(c.recorded, email)
	return nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (o *stubOutbox) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	o.events = append(o.events, event)
	return nil
}

func price(value string) decimal.Decimal {
	d, _ := decimal.NewFromString(value)
	return d
}

func newTestService(t *testing.T, repo *stubRepo, products *stubProducts, issuer *stubIssuer, customers *stubCustomers, outboxStub *stubOutbox) Service {
	t.Helper()
	svc, err := NewService(
		repo,
		products,
		stubTxRunner{},
		issuer,
		customers,
		outboxStub,
		config.StorefrontConfig{OrderNumberPrefix: "HT", Currency: "EUR"},
		nil,
	)
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return svc
}

func TestCreateSnapshotsPriceAndName(t *testing.T) {
	productID := uuid.New()
	products := &stubProducts{products: []models.Product{
		{ID: productID, Name: "Ambient Pack", Price: price("19.90"), Status: enums.ProductStatusActive},
	}}
	repo := newStubRepo()
	svc := newTestService(t, repo, products, &stubIssuer{}, &stubCustomers{}, &stubOutbox{})

	detail, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerEmail: "Buyer@Example.COM",
		PaymentMethod: enums.PaymentMethodStripe,
		Items: []CreateOrderItemInput{
			{ProductID: productID, Quantity: 2},
			{ProductID: productID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if detail.CustomerEmail != "buyer@example.com" {
		t.Fatalf("expected normalized email, got %s", detail.CustomerEmail)
	}
	if len(detail.Items) != 1 {
		t.Fatalf("expected merged line items, got %d", len(detail.Items))
	}
	item := detail.Items[0]
	if item.Quantity != 3 {
		t.Fatalf("expected merged quantity 3, got %d", item.Quantity)
	}
	if item.ProductName != "Ambient Pack" || !item.UnitPrice.Equal(price("19.90")) {
		t.Fatalf("snapshot mismatch: %+v", item)
	}
	if !detail.Subtotal.Equal(price("59.70")) || !detail.Total.Equal(price("59.70")) {
		t.Fatalf("unexpected totals: subtotal=%s total=%s", detail.Subtotal, detail.Total)
	}
	if !detail.Tax.Equal(decimal.Zero) {
		t.Fatalf("expected zero tax, got %s", detail.Tax)
	}
	if detail.PaymentStatus != enums.PaymentStatusPending {
		t.Fatalf("expected pending payment, got %s", detail.PaymentStatus)
	}
	if !strings.HasPrefix(detail.OrderNumber, "HT") || len(detail.OrderNumber) != 10 {
		t.Fatalf("unexpected order number %q", detail.OrderNumber)
	}
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	repo := newStubRepo()
	svc := newTestService(t, repo, &stubProducts{}, &stubIssuer{}, &stubCustomers{}, &stubOutbox{})

	_, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerEmail: "buyer@example.com",
		PaymentMethod: enums.PaymentMethodStripe,
		Items:         []CreateOrderItemInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateRetriesOrderNumberCollision(t *testing.T) {
	productID := uuid.New()
	products := &stubProducts{products: []models.Product{
		{ID: productID, Name: "Pack", Price: price("5.00"), Status: enums.ProductStatusActive},
	}}
	repo := newStubRepo()
	repo.createErrs = []error{&pgconn.PgError{Code: "23505", ConstraintName: "orders_order_number_key"}}
	svc := newTestService(t, repo, products, &stubIssuer{}, &stubCustomers{}, &stubOutbox{})

	detail, err := svc.Create(context.Background(), CreateOrderInput{
		CustomerEmail: "buyer@example.com",
		PaymentMethod: enums.PaymentMethodStripe,
		Items:         []CreateOrderItemInput{{ProductID: productID}},
	})
	if err != nil {
		t.Fatalf("create after collision: %v", err)
	}
	if detail.OrderNumber == "" {
		t.Fatalf("expected order number after retry")
	}
}

func TestConfirmPaymentTransitionsOnce(t *testing.T) {
	productID := uuid.New()
	repo := newStubRepo()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "HT25090001",
		CustomerEmail: "buyer@example.com",
		PaymentStatus: enums.PaymentStatusPending,
		Items:         []models.OrderItem{{ProductID: productID, ProductName: "Pack", UnitPrice: price("5.00"), Quantity: 1}},
		Total:         price("5.00"),
		Currency:      "EUR",
	}
	repo.orders[order.ID] = order

	issuer := &stubIssuer{}
	customers := &stubCustomers{}
	products := &stubProducts{}
	outboxStub := &stubOutbox{}
	svc := newTestService(t, repo, products, issuer, customers, outboxStub)

	if err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123"); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}
	if issuer.calls != 1 {
		t.Fatalf("expected one issuance, got %d", issuer.calls)
	}
	if len(products.salesCalls) != 1 || products.salesCalls[0] != productID {
		t.Fatalf("expected sales count bump for %s", productID)
	}
	if len(customers.recorded) != 1 {
		t.Fatalf("expected customer recorded")
	}
	if len(outboxStub.events) != 1 || outboxStub.events[0].EventType != enums.EventOrderPaid {
		t.Fatalf("expected order.paid event, got %+v", outboxStub.events)
	}

	// Replay: the order is now completed, so nothing runs again.
	order.PaymentStatus = enums.PaymentStatusCompleted
	if err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123"); err != nil {
		t.Fatalf("replayed confirm: %v", err)
	}
	if issuer.calls != 1 || len(outboxStub.events) != 1 {
		t.Fatalf("expected replay to be absorbed")
	}
}

func TestConfirmPaymentLostRaceIsAbsorbed(t *testing.T) {
	repo := newStubRepo()
	order := &models.Order{ID: uuid.New(), PaymentStatus: enums.PaymentStatusPending}
	repo.orders[order.ID] = order
	repo.updateRowsSet = true
	repo.updateRows = 0

	issuer := &stubIssuer{}
	svc := newTestService(t, repo, &stubProducts{}, issuer, &stubCustomers{}, &stubOutbox{})

	if err := svc.ConfirmPayment(context.Background(), order.ID, "pi_123"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if issuer.calls != 0 {
		t.Fatalf("expected no issuance when another confirmation won")
	}
}

func TestConfirmPaymentUnknownOrder(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubProducts{}, &stubIssuer{}, &stubCustomers{}, &stubOutbox{})
	err := svc.ConfirmPayment(context.Background(), uuid.New(), "pi_123")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFailPaymentNeverDowngradesCompleted(t *testing.T) {
	repo := newStubRepo()
	order := &models.Order{ID: uuid.New(), PaymentStatus: enums.PaymentStatusCompleted}
	repo.orders[order.ID] = order

	outboxStub := &stubOutbox{}
	svc := newTestService(t, repo, &stubProducts{}, &stubIssuer{}, &stubCustomers{}, outboxStub)

	if err := svc.FailPayment(context.Background(), order.ID, "card declined"); err != nil {
		t.Fatalf("fail payment: %v", err)
	}
	if len(repo.updates) != 0 {
		t.Fatalf("expected no update on a completed order")
	}
	if len(outboxStub.events) != 0 {
		t.Fatalf("expected no failure event")
	}
}

func TestFailPaymentEmitsEvent(t *testing.T) {
	repo := newStubRepo()
	order := &models.Order{ID: uuid.New(), OrderNumber: "HT25090002", CustomerEmail: "buyer@example.com", PaymentStatus: enums.PaymentStatusPending}
	repo.orders[order.ID] = order

	outboxStub := &stubOutbox{}
	svc := newTestService(t, repo, &stubProducts{}, &stubIssuer{}, &stubCustomers{}, outboxStub)

	if err := svc.FailPayment(context.Background(), order.ID, "card declined"); err != nil {
		t.Fatalf("fail payment: %v", err)
	}
	if len(outboxStub.events) != 1 || outboxStub.events[0].EventType != enums.EventOrderFailed {
		t.Fatalf("expected failed event, got %+v", outboxStub.events)
	}
}

func TestLookupRequiresMatchingEmail(t *testing.T) {
	repo := newStubRepo()
	order := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "HT25090003",
		CustomerEmail: "buyer@example.com",
		PaymentStatus: enums.PaymentStatusPending,
	}
	repo.orders[order.ID] = order
	repo.byNumber[order.OrderNumber] = order

	svc := newTestService(t, repo, &stubProducts{}, &stubIssuer{}, &stubCustomers{}, &stubOutbox{})

	if _, err := svc.Lookup(context.Background(), "HT25090003", "Buyer@Example.com"); err != nil {
		t.Fatalf("lookup with matching email: %v", err)
	}

	_, err := svc.Lookup(context.Background(), "HT25090003", "other@example.com")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected forbidden on email mismatch, got %v", err)
	}
}

func TestLookupUnknownNumber(t *testing.T) {
	svc := newTestService(t, newStubRepo(), &stubProducts{}, &stubIssuer{}, &stubCustomers{}, &stubOutbox{})
	_, err := svc.Lookup(context.Background(), "HT25090404", "buyer@example.com")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttachTransactionRef(t *testing.T) {
	repo := newStubRepo()
	order := &models.Order{ID: uuid.New()}
	repo.orders[order.ID] = order

	svc := newTestService(t, repo, &stubProducts{}, &stubIssuer{}, &stubCustomers{}, &stubOutbox{})

	if err := svc.AttachTransactionRef(context.Background(), order.ID, " cs_test_123 "); err != nil {
		t.Fatalf("attach ref: %v", err)
	}
	if len(repo.updates) != 1 || repo.updates[0]["transaction_ref"] != "cs_test_123" {
		t.Fatalf("expected trimmed ref recorded, got %+v", repo.updates)
	}

	err := svc.AttachTransactionRef(context.Background(), uuid.New(), "cs_test_456")
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for unknown order, got %v", err)
	}
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	now := time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC)
	number, err := GenerateOrderNumber("HT", now)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(number, "HT2509") {
		t.Fatalf("expected HT2509 prefix, got %q", number)
	}
	if len(number) != 10 {
		t.Fatalf("expected 10 characters, got %q", number)
	}
	for _, c := range number[2:] {
		if c < '0' || c > '9' {
			t.Fatalf("expected digits after prefix, got %q", number)
		}
	}
}

func TestGenerateOrderNumberDefaultsPrefix(t *testing.T) {
	number, err := GenerateOrderNumber("", time.Now())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(number, "HT") {
		t.Fatalf("expected default prefix, got %q", number)
	}
}
