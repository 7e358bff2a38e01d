package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// WebhookEvent is the subset of the webhook payload we consume.
type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     json.RawMessage `json:"resource"`
}

type verifyWebhookRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifyWebhookResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// VerifyWebhookSignature validates a webhook delivery via PayPal's
// verification endpoint using the transmission headers.
func (c *Client) VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error) {
	if c == nil {
		return false, errors.New("paypal client not initialized")
	}
	if c.webhookID == "" {
		return false, errors.New("paypal webhook id not configured")
	}

	req := verifyWebhookRequest{
		AuthAlgo:         headers.Get("Paypal-Auth-Algo"),
		CertURL:          headers.Get("Paypal-Cert-Url"),
		TransmissionID:   headers.Get("Paypal-Transmission-Id"),
		TransmissionSig:  headers.Get("Paypal-Transmission-Sig"),
		TransmissionTime: headers.Get("Paypal-Transmission-Time"),
		WebhookID:        c.webhookID,
		WebhookEvent:     json.RawMessage(rawBody),
	}
	if req.TransmissionID == "" || req.TransmissionSig == "" {
		return false, nil
	}

	var out verifyWebhookResponse
	if err := c.do(ctx, http.MethodPost, "/v1/notifications/verify-webhook-signature", req, &out); err != nil {
		return false, err
	}
	return out.VerificationStatus == "SUCCESS", nil
}
