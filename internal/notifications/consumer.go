package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/harmonia-digital/storefront-backend/internal/orders"
	"github.com/harmonia-digital/storefront-backend/pkg/db/models"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/mailer"
	"github.com/harmonia-digital/storefront-backend/pkg/outbox"
)

type orderFinder interface {
	FindModelByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type tokenFinder interface {
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]models.DownloadToken, error)
}

type processResult struct {
	ack  bool
	nack bool
}

// Consumer turns published order events into customer email.
type Consumer struct {
	subscription *pubsub.Subscriber
	registry     *outbox.DecoderRegistry
	sender       mailer.Sender
	orders       orderFinder
	tokens       tokenFinder
	clientURL    string
	storeName    string
	logg         *logger.Logger
}

type ConsumerParams struct {
	Subscription *pubsub.Subscriber
	Registry     *outbox.DecoderRegistry
	Sender       mailer.Sender
	Orders       orderFinder
	Tokens       tokenFinder
	ClientURL    string
	StoreName    string
	Logger       *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("notification subscription is required")
	}
	if params.Registry == nil {
		return nil, errors.New("decoder registry is required")
	}
	if params.Sender == nil {
		return nil, errors.New("mail sender is required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders finder is required")
	}
	if params.Tokens == nil {
		return nil, errors.New("token finder is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	storeName := strings.TrimSpace(params.StoreName)
	if storeName == "" {
		storeName = "Harmonia Digital"
	}
	return &Consumer{
		subscription: params.Subscription,
		registry:     params.Registry,
		sender:       params.Sender,
		orders:       params.Orders,
		tokens:       params.Tokens,
		clientURL:    strings.TrimRight(params.ClientURL, "/"),
		storeName:    storeName,
		logg:         params.Logger,
	}, nil
}

// Run processes notification events until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := enums.OutboxEventType(msg.Attributes["event_type"])
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": string(eventType),
		"event_id":   msg.Attributes["event_id"],
	})

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode event envelope", err)
		return processResult{ack: true}
	}

	decoded, err := c.registry.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		// Unknown events are not poison for this worker; drop them.
		c.logg.Warn(c.logg.WithField(logCtx, "error", err.Error()), "skipping undecodable event")
		return processResult{ack: true}
	}

	switch event := decoded.(type) {
	case orders.PaidEvent:
		return c.handleOrderPaid(logCtx, event)
	case orders.FailedEvent:
		return c.handleOrderFailed(logCtx, event)
	default:
		c.logg.Warn(logCtx, "no handler for decoded event")
		return processResult{ack: true}
	}
}

func (c *Consumer) handleOrderPaid(ctx context.Context, event orders.PaidEvent) processResult {
	tokens, err := c.tokens.FindByOrder(ctx, event.OrderID)
	if err != nil {
		c.logg.Error(ctx, "failed to load download tokens", err)
		return processResult{nack: true}
	}

	links, err := c.buildLinks(ctx, event.OrderID, tokens)
	if err != nil {
		c.logg.Error(ctx, "failed to build download links", err)
		return processResult{nack: true}
	}

	msg, err := buildOrderPaidEmail(c.storeName, event, links)
	if err != nil {
		c.logg.Error(ctx, "failed to render receipt email", err)
		return processResult{ack: true}
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		c.logg.Error(ctx, "failed to send receipt email", err)
		return processResult{nack: true}
	}

	c.logg.Info(c.logg.WithField(ctx, "download_links", len(links)), "receipt email sent")
	return processResult{ack: true}
}

func (c *Consumer) handleOrderFailed(ctx context.Context, event orders.FailedEvent) processResult {
	msg, err := buildOrderFailedEmail(c.storeName, event)
	if err != nil {
		c.logg.Error(ctx, "failed to render failure email", err)
		return processResult{ack: true}
	}
	if err := c.sender.Send(ctx, msg); err != nil {
		c.logg.Error(ctx, "failed to send failure email", err)
		return processResult{nack: true}
	}
	c.logg.Info(ctx, "payment failure email sent")
	return processResult{ack: true}
}

// buildLinks joins tokens with the order's snapshot names so the email never
// depends on the current catalog state.
func (c *Consumer) buildLinks(ctx context.Context, orderID uuid.UUID, tokens []models.DownloadToken) ([]DownloadLink, error) {
	if len(tokens) == 0 {
		return nil, nil
	}

	order, err := c.orders.FindModelByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(order.Items))
	for _, item := range order.Items {
		names[item.ProductID] = item.ProductName
	}

	links := make([]DownloadLink, 0, len(tokens))
	for _, token := range tokens {
		name := names[token.ProductID]
		if name == "" {
			name = "Your purchase"
		}
		links = append(links, DownloadLink{
			ProductName:  name,
			URL:          fmt.Sprintf("%s/downloads/%s", c.clientURL, token.Token),
			ExpiresAt:    token.ExpiresAt,
			MaxDownloads: token.MaxDownloads,
		})
	}
	return links, nil
}
