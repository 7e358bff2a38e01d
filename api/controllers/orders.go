package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/harmonia-digital/storefront-backend/api/responses"
	"github.com/harmonia-digital/storefront-backend/api/validators"
	ordersvc "github.com/harmonia-digital/storefront-backend/internal/orders"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
)

type createOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"omitempty,min=1,max=100"`
}

type createOrderRequest struct {
	CustomerEmail string                   `json:"customer_email" validate:"required,email"`
	CustomerName  *string                  `json:"customer_name,omitempty"`
	PaymentMethod string                   `json:"payment_method" validate:"required"`
	Items         []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes         *string                  `json:"notes,omitempty"`
}

func (req createOrderRequest) toInput(r *http.Request) (ordersvc.CreateOrderInput, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(req.PaymentMethod))
	if err != nil {
		return ordersvc.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}

	items := make([]ordersvc.CreateOrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		id, err := uuid.Parse(strings.TrimSpace(item.ProductID))
		if err != nil {
			return ordersvc.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid product id").WithDetails(map[string]any{"product_id": item.ProductID})
		}
		items = append(items, ordersvc.CreateOrderItemInput{ProductID: id, Quantity: item.Quantity})
	}

	input := ordersvc.CreateOrderInput{
		CustomerEmail: req.CustomerEmail,
		CustomerName:  req.CustomerName,
		PaymentMethod: method,
		Items:         items,
		Notes:         req.Notes,
	}
	if ip := clientAddr(r); ip != "" {
		input.IPAddress = &ip
	}
	if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
		input.UserAgent = &ua
	}
	return input, nil
}

// OrderCreate opens a pending order with price and name snapshots.
func OrderCreate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := payload.toInput(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type orderLookupRequest struct {
	OrderNumber string `json:"order_number" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
}

// OrderLookup lets a customer retrieve their order by number + email.
func OrderLookup(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}

		var payload orderLookupRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Lookup(r.Context(), payload.OrderNumber, payload.Email)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, order)
	}
}

func clientAddr(r *http.Request) string {
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return host
}
