package notifications

import (
	"encoding/json"

	"github.com/harmonia-digital/storefront-backend/internal/orders"
	"github.com/harmonia-digital/storefront-backend/pkg/enums"
	"github.com/harmonia-digital/storefront-backend/pkg/outbox"
)

// NewDecoderRegistry registers the payload versions the notification worker understands.
func NewDecoderRegistry() *outbox.DecoderRegistry {
	registry := outbox.NewDecoderRegistry()
	registry.Register(enums.EventOrderPaid, 1, func(payload json.RawMessage) (interface{}, error) {
		var event orders.PaidEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})
	registry.Register(enums.EventOrderFailed, 1, func(payload json.RawMessage) (interface{}, error) {
		var event orders.FailedEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, err
		}
		return event, nil
	})
	return registry
}
