package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// OrderStatusCompleted is the terminal status of a captured PayPal order.
const OrderStatusCompleted = "COMPLETED"

// PurchaseUnit describes one amount block in a PayPal order.
type PurchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type Amount struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method,omitempty"`
}

// OrderResponse is the subset of the Orders v2 payload we consume.
type OrderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Links         []Link         `json:"links,omitempty"`
	PurchaseUnits []PurchaseUnit `json:"purchase_units,omitempty"`
}

// ApproveLink returns the buyer-approval URL from an order response.
func (o OrderResponse) ApproveLink() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

type createOrderRequest struct {
	Intent             string              `json:"intent"`
	PurchaseUnits      []PurchaseUnit      `json:"purchase_units"`
	ApplicationContext *applicationContext `json:"application_context,omitempty"`
}

type applicationContext struct {
	ReturnURL string `json:"return_url,omitempty"`
	CancelURL string `json:"cancel_url,omitempty"`
}

// CreateOrder opens a CAPTURE-intent order for the given amount.
func (c *Client) CreateOrder(ctx context.Context, referenceID, currency, value, description, returnURL, cancelURL string) (*OrderResponse, error) {
	if value == "" {
		return nil, errors.New("amount value is required")
	}
	if currency == "" {
		return nil, errors.New("currency is required")
	}

	req := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []PurchaseUnit{{
			ReferenceID: referenceID,
			Amount:      Amount{CurrencyCode: currency, Value: value},
			Description: description,
		}},
	}
	if returnURL != "" || cancelURL != "" {
		req.ApplicationContext = &applicationContext{ReturnURL: returnURL, CancelURL: cancelURL}
	}

	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, "/v2/checkout/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetOrder fetches the current state of a PayPal order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	var out OrderResponse
	if err := c.do(ctx, http.MethodGet, "/v2/checkout/orders/"+orderID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CaptureOrder captures an approved PayPal order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (*OrderResponse, error) {
	if orderID == "" {
		return nil, errors.New("order id is required")
	}
	var out OrderResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/v2/checkout/orders/%s/capture", orderID), struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
