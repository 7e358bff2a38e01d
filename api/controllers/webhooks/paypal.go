package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/harmonia-digital/storefront-backend/api/responses"
	pkgerrors "github.com/harmonia-digital/storefront-backend/pkg/errors"
	"github.com/harmonia-digital/storefront-backend/pkg/logger"
	"github.com/harmonia-digital/storefront-backend/pkg/metrics"
	"github.com/harmonia-digital/storefront-backend/pkg/paypal"
)

type PayPalWebhookService interface {
	HandleEvent(ctx context.Context, event *paypal.WebhookEvent) error
}

type paypalVerifier interface {
	VerifyWebhookSignature(ctx context.Context, headers http.Header, rawBody []byte) (bool, error)
}

// PayPalWebhook verifies and dispatches PayPal order and capture events.
func PayPalWebhook(svc PayPalWebhookService, verifier paypalVerifier, guard webhookGuard, store *metrics.StoreMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "paypal client unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		verified, err := verifier.VerifyWebhookSignature(ctx, r.Header, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify signature"))
			return
		}
		if !verified {
			if store != nil {
				store.IncPaymentWebhook("paypal", "rejected")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "webhook signature invalid"))
			return
		}

		var event paypal.WebhookEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode webhook event"))
			return
		}
		if event.ID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "event id missing"))
			return
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			if store != nil {
				store.IncPaymentWebhook("paypal", "duplicate")
			}
			responses.WriteSuccess(w, nil)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			_ = guard.Delete(ctx, event.ID)
			if store != nil {
				store.IncPaymentWebhook("paypal", "failed")
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if store != nil {
			store.IncPaymentWebhook("paypal", "processed")
		}
		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("paypal event %s processed", event.ID))
		}
		responses.WriteSuccess(w, nil)
	}
}
