package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/tourbook-backend/api/responses"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/types"
)

// maxBodyBytes bounds a single event body. Bodies over it are refused with 413
// rather than truncated, since a cut payload can never verify.
const maxBodyBytes = 512 << 10

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type StripeWebhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	FirstSeen(ctx context.Context, eventID string) (time.Time, error)
	Delete(ctx context.Context, eventID string) error
}

type StripeVerifier interface {
	VerifyEvent(payload []byte, signature string) (stripe.Event, error)
}

// StripeWebhook verifies and reconciles Stripe payment events. Retryable
// failures answer 5xx and release the event claim so Stripe's redelivery is
// processed; every other outcome is acknowledged with 200.
func StripeWebhook(svc StripeWebhookService, verifier StripeVerifier, guard StripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if verifier == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe verifier unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			if logg != nil {
				logg.Warn(logg.WithField(ctx, "limit_bytes", tooLarge.Limit), "stripe webhook body too large")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeTooLarge, err, "stripe webhook body too large").
				WithDetails(map[string]any{"limit_bytes": tooLarge.Limit}))
			return
		}
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "stripe signature missing"))
			return
		}

		event, err := verifier.VerifyEvent(payload, sigHeader)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "stripe signature invalid"))
			return
		}
		if logg != nil {
			ctx = logg.WithField(ctx, "stripe_event_id", event.ID)
		}

		alreadyProcessed, err := guard.CheckAndMark(ctx, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if alreadyProcessed {
			if logg != nil {
				dupCtx := ctx
				if first, err := guard.FirstSeen(ctx, event.ID); err == nil && !first.IsZero() {
					dupCtx = logg.WithField(ctx, "first_seen_at", first.Format(time.RFC3339))
				}
				logg.Info(dupCtx, "stripe event already claimed")
			}
			responses.WriteAck(w, types.AckDuplicate, event.ID)
			return
		}

		if err := svc.HandleEvent(ctx, &event); err != nil {
			if pkgerrors.IsRetryable(err) {
				if relErr := guard.Delete(ctx, event.ID); relErr != nil && logg != nil {
					logg.Error(ctx, "stripe event claim not released", relErr)
				}
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if logg != nil {
				logg.Error(ctx, "stripe event rejected", err)
			}
			responses.WriteAck(w, types.AckRejected, event.ID)
			return
		}

		if logg != nil {
			logg.Info(ctx, "stripe event processed")
		}
		responses.WriteAck(w, types.AckProcessed, event.ID)
	}
}
