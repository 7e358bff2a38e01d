package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harmonia-digital/storefront-backend/pkg/config"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
)

const sendEndpoint = "https://api.sendgrid.com/v3/mail/send"

// Mailer delivers transactional email through SendGrid's v3 REST API.
type Mailer struct {
	httpClient *http.Client
	apiKey     string
	fromEmail  string
	fromName   string
	endpoint   string
	logg       *logger.Logger
}

// Sender is the consumer-side surface used by the notification worker.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is a single outbound email.
type Message struct {
	ToEmail  string
	ToName   string
	Subject  string
	HTMLBody string
	TextBody string
}

var (
	errAPIKeyRequired = errors.New("sendgrid api key is required")
	errFromRequired   = errors.New("sendgrid from email is required")
)

func New(cfg config.SendgridConfig, logg *logger.Logger) (*Mailer, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	from := strings.TrimSpace(cfg.FromEmail)
	if from == "" {
		return nil, errFromRequired
	}

	return &Mailer{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		fromEmail:  from,
		fromName:   strings.TrimSpace(cfg.FromName),
		endpoint:   sendEndpoint,
		logg:       logg,
	}, nil
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From             address           `json:"from"`
	Subject          string            `json:"subject"`
	Content          []content         `json:"content"`
}

type personalization struct {
	To []address `json:"to"`
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Send delivers one message. SendGrid answers 202 on accepted payloads.
func (m *Mailer) Send(ctx context.Context, msg Message) error {
	if m == nil {
		return errors.New("mailer not initialized")
	}
	if msg.ToEmail == "" {
		return errors.New("recipient email is required")
	}
	if msg.Subject == "" {
		return errors.New("subject is required")
	}

	var parts []content
	if msg.TextBody != "" {
		parts = append(parts, content{Type: "text/plain", Value: msg.TextBody})
	}
	if msg.HTMLBody != "" {
		parts = append(parts, content{Type: "text/html", Value: msg.HTMLBody})
	}
	if len(parts) == 0 {
		return errors.New("message body is required")
	}

	payload := sendRequest{
		Personalizations: []personalization{{To: []address{{Email: msg.ToEmail, Name: msg.ToName}}}},
		From:             address{Email: m.fromEmail, Name: m.fromName},
		Subject:          msg.Subject,
		Content:          parts,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sendgrid returned %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if m.logg != nil {
		m.logg.Info(ctx, "email dispatched")
	}
	return nil
}
