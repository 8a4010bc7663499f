// Package stripewebhook maps verified Stripe events onto payment reconciliation.
package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/tourbook-backend/internal/reconcile"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context, event reconcile.PaymentEvent) (reconcile.Result, error)
}

type ServiceParams struct {
	Reconciler reconciler
	Logger     *logger.Logger
}

type Service struct {
	reconciler reconciler
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Reconciler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reconciler required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{reconciler: params.Reconciler, logg: params.Logger}, nil
}

// HandleEvent reconciles payment_intent.succeeded and paid
// checkout.session.completed events. Other event types are ignored. Both event
// kinds resolve to the payment intent id, so a session and its intent
// reconcile the same bookings.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"stripe_event_id":   event.ID,
		"stripe_event_type": string(event.Type),
	})

	var (
		payment reconcile.PaymentEvent
		ok      bool
		err     error
	)
	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded:
		payment, ok, err = paymentFromIntent(event)
	case stripe.EventTypeCheckoutSessionCompleted:
		payment, ok, err = paymentFromSession(event)
	default:
		return nil
	}
	if err != nil {
		return err
	}
	if !ok {
		s.logg.Info(ctx, "stripe event carries no captured payment")
		return nil
	}

	result, err := s.reconciler.Reconcile(ctx, payment)
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_id": result.PaymentID,
		"outcome":    result.Outcome.String(),
		"bookings":   result.Count(),
	}), "stripe payment reconciled")
	return nil
}

func paymentFromIntent(event *stripe.Event) (reconcile.PaymentEvent, bool, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return reconcile.PaymentEvent{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	if intent.ID == "" {
		return reconcile.PaymentEvent{}, false, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	amount := intent.AmountReceived
	if amount == 0 {
		amount = intent.Amount
	}
	return reconcile.PaymentEvent{
		PaymentID:  intent.ID,
		Metadata:   intent.Metadata,
		Amount:     MinorToMajor(amount, string(intent.Currency)),
		Currency:   string(intent.Currency),
		ReceivedAt: eventTime(event),
	}, true, nil
}

func paymentFromSession(event *stripe.Event) (reconcile.PaymentEvent, bool, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return reconcile.PaymentEvent{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		return reconcile.PaymentEvent{}, false, nil
	}
	paymentID := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		paymentID = session.PaymentIntent.ID
	}
	if paymentID == "" {
		return reconcile.PaymentEvent{}, false, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return reconcile.PaymentEvent{
		PaymentID:  paymentID,
		Metadata:   session.Metadata,
		Amount:     MinorToMajor(session.AmountTotal, string(session.Currency)),
		Currency:   string(session.Currency),
		ReceivedAt: eventTime(event),
	}, true, nil
}

func eventTime(event *stripe.Event) time.Time {
	if event.Created > 0 {
		return time.Unix(event.Created, 0).UTC()
	}
	return time.Now().UTC()
}

// zeroDecimalCurrencies are charged in whole units.
var zeroDecimalCurrencies = map[string]struct{}{
	"bif": {}, "clp": {}, "djf": {}, "gnf": {}, "jpy": {}, "kmf": {}, "krw": {}, "mga": {},
	"pyg": {}, "rwf": {}, "ugx": {}, "vnd": {}, "vuv": {}, "xaf": {}, "xof": {}, "xpf": {},
}

// MinorToMajor converts a Stripe amount in minor units to a decimal amount.
func MinorToMajor(amount int64, currency string) decimal.Decimal {
	if _, ok := zeroDecimalCurrencies[strings.ToLower(currency)]; ok {
		return decimal.NewFromInt(amount)
	}
	return decimal.New(amount, -2)
}
