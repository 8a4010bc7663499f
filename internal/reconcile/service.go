// Package reconcile turns captured payments into bookings.
//
// A run first looks for bookings already written for the payment, usually by
// the synchronous checkout as pending. Those are confirmed in place. When none
// exist the cart is rebuilt from the payment metadata and materialized. No
// locks are taken: deterministic references plus the bookings unique indexes
// make concurrent runs for one payment converge on the same rows.
package reconcile

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/internal/bookings"
	"github.com/angelmondragon/tourbook-backend/internal/cartmeta"
	"github.com/angelmondragon/tourbook-backend/internal/notifications"
	"github.com/angelmondragon/tourbook-backend/internal/pricing"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/metrics"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type customerResolver interface {
	Resolve(ctx context.Context, contact cartmeta.Customer) (*models.Customer, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
}

type tourCatalog interface {
	FindByID(ctx context.Context, id string) (*models.Tour, error)
	RequireBookable(ctx context.Context, id string) (*models.Tour, error)
}

type notifier interface {
	Dispatch(ctx context.Context, summary notifications.Summary) error
	ConfirmTx(ctx context.Context, tx *gorm.DB, summary notifications.Summary) error
	ReportFailure(ctx context.Context, failure notifications.Failure) error
}

type cartPricer interface {
	PriceCart(lines []cartmeta.CartLine, totalDiscount decimal.Decimal) []pricing.Breakdown
}

// ServiceParams wires the reconciler's collaborators. Pricer defaults to the
// standard rates and Metrics may be nil.
type ServiceParams struct {
	TxRunner        txRunner
	Bookings        bookings.Repository
	Customers       customerResolver
	Tours           tourCatalog
	Notifier        notifier
	Pricer          cartPricer
	Metrics         *metrics.ReconcileMetrics
	Logger          *logger.Logger
	DefaultCurrency string
}

// Service reconciles payment events against stored bookings.
type Service struct {
	tx              txRunner
	bookings        bookings.Repository
	customers       customerResolver
	tours           tourCatalog
	notifier        notifier
	pricer          cartPricer
	metrics         *metrics.ReconcileMetrics
	logg            *logger.Logger
	defaultCurrency string
	now             func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tx runner required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings repository required")
	}
	if params.Customers == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customer resolver required")
	}
	if params.Tours == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "tour catalog required")
	}
	if params.Notifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notifier required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	pricer := params.Pricer
	if pricer == nil {
		pricer = pricing.NewDefaultCalculator()
	}
	currency := strings.ToLower(strings.TrimSpace(params.DefaultCurrency))
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		tx:              params.TxRunner,
		bookings:        params.Bookings,
		customers:       params.Customers,
		tours:           params.Tours,
		notifier:        params.Notifier,
		pricer:          pricer,
		metrics:         params.Metrics,
		logg:            params.Logger,
		defaultCurrency: currency,
		now:             time.Now,
	}, nil
}

// Reconcile applies one delivery of a payment event. A nil error means the
// delivery can be acknowledged, including data errors that retrying would not
// fix. A non-nil error is retryable when pkgerrors.IsRetryable says so.
func (s *Service) Reconcile(ctx context.Context, event PaymentEvent) (Result, error) {
	started := s.now()
	result := Result{PaymentID: strings.TrimSpace(event.PaymentID)}
	if result.PaymentID == "" {
		return result, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	ctx = s.logg.WithPaymentID(ctx, result.PaymentID)

	result, err := s.resolve(ctx, event, result)
	if result.Outcome != "" {
		s.metrics.ObserveOutcome(result.Outcome.String(), s.now().Sub(started))
	}
	return result, err
}

func (s *Service) resolve(ctx context.Context, event PaymentEvent, result Result) (Result, error) {
	meta, decodeErr := cartmeta.Decode(event.Metadata)
	if decodeErr == nil && !meta.HasBookingData {
		result.Outcome = enums.ReconcileSkipped
		s.logg.Info(ctx, "reconcile.skipped")
		return result, nil
	}

	existing, err := s.bookings.FindByPaymentID(ctx, result.PaymentID)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup bookings by payment")
	}
	if len(existing) > 0 {
		return s.resolveExisting(ctx, existing, result)
	}

	if decodeErr != nil {
		result.Outcome = enums.ReconcileInvalidCartData
		s.logg.Error(ctx, "reconcile.invalid_cart_data", decodeErr)
		s.reportFailure(ctx, event, result, "cart metadata undecodable: "+decodeErr.Error())
		return result, nil
	}
	return s.materialize(ctx, event, meta, result)
}

func (s *Service) resolveExisting(ctx context.Context, existing []models.Booking, result Result) (Result, error) {
	result.References = references(existing)
	result.Reused = len(existing)

	pending, confirmed := 0, 0
	for _, b := range existing {
		switch b.Status {
		case enums.BookingStatusPending:
			pending++
		case enums.BookingStatusConfirmed:
			confirmed++
		}
	}

	switch {
	case pending > 0:
		return s.confirmPending(ctx, existing, result)
	case confirmed == len(existing):
		result.Outcome = enums.ReconcileAlreadyConfirmed
		s.logg.Info(ctx, "reconcile.already_confirmed")
	default:
		result.Outcome = enums.ReconcileAlreadyProcessed
		s.logg.Info(s.logg.WithField(ctx, "status", existing[0].Status), "reconcile.already_processed")
	}
	return result, nil
}

// confirmPending flips the payment's pending lines and queues the customer
// confirmation, and nothing else, in the same transaction. Only the run whose
// update changes rows queues it; the outbox dedupe covers the rest.
func (s *Service) confirmPending(ctx context.Context, existing []models.Booking, result Result) (Result, error) {
	summary, err := s.pendingSummary(ctx, existing, result.PaymentID)
	if err != nil {
		return result, err
	}

	var flipped int64
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.bookings.WithTx(tx)
		n, err := repo.ConfirmPendingByPaymentID(ctx, result.PaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm pending bookings")
		}
		flipped = n
		if n == 0 {
			return nil
		}
		rows, err := repo.FindByPaymentID(ctx, result.PaymentID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload confirmed bookings")
		}
		summary.Bookings = rows
		if summary.Customer == nil {
			s.logg.Warn(ctx, "confirmed bookings have no customer; notification skipped")
			return nil
		}
		if err := s.notifier.ConfirmTx(ctx, tx, summary); err != nil {
			s.logg.Warn(ctx, "confirmation not queued for pending bookings")
		}
		return nil
	})
	if err != nil {
		return result, err
	}

	if flipped == 0 {
		result.Outcome = enums.ReconcileAlreadyConfirmed
		s.logg.Info(ctx, "reconcile.already_confirmed")
		return result, nil
	}
	result.Outcome = enums.ReconcileUpdated
	s.logg.Info(s.logg.WithField(ctx, "confirmed", flipped), "reconcile.updated")
	return result, nil
}

func (s *Service) pendingSummary(ctx context.Context, existing []models.Booking, paymentID string) (notifications.Summary, error) {
	first := existing[0]
	summary := notifications.Summary{
		PaymentID:  paymentID,
		Source:     payloads.SourcePendingConfirmed,
		TourTitles: s.tourTitles(ctx, existing),
		Currency:   first.Currency,
	}
	if first.DiscountCode != nil {
		summary.DiscountCode = *first.DiscountCode
	}
	discount := decimal.Zero
	for _, b := range existing {
		if b.DiscountAmount != nil {
			discount = discount.Add(*b.DiscountAmount)
		}
	}
	summary.DiscountAmount = discount

	customer, err := s.customers.FindByID(ctx, first.CustomerID)
	if err != nil {
		return summary, err
	}
	summary.Customer = customer
	return summary, nil
}

// tourTitles is best effort; templates fall back to the tour id.
func (s *Service) tourTitles(ctx context.Context, rows []models.Booking) map[string]string {
	titles := make(map[string]string, len(rows))
	for _, b := range rows {
		if _, ok := titles[b.TourID]; ok {
			continue
		}
		tour, err := s.tours.FindByID(ctx, b.TourID)
		if err != nil || tour == nil {
			continue
		}
		titles[b.TourID] = tour.Title
	}
	return titles
}

func references(rows []models.Booking) []string {
	out := make([]string, 0, len(rows))
	for _, b := range rows {
		out = append(out, b.BookingReference)
	}
	return out
}
