// Package notifications turns reconciliation results into outbound mail
// requests. Requests are queued in the outbox; delivery happens downstream.
package notifications

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/internal/reference"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

type emitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Summary is everything the confirmation and alert templates need.
type Summary struct {
	PaymentID      string
	Source         string
	Customer       *models.Customer
	Bookings       []models.Booking
	TourTitles     map[string]string
	Failed         []payloads.LineFailure
	Currency       string
	DiscountCode   string
	DiscountAmount decimal.Decimal
}

// Failure describes a captured payment that produced no booking.
type Failure struct {
	PaymentID string
	Outcome   enums.ReconcileOutcome
	Amount    decimal.Decimal
	Currency  string
	Failed    []payloads.LineFailure
	Reason    string
}

type DispatcherParams struct {
	Emitter        emitter
	TxRunner       txRunner
	AlertRecipient string
	Logger         *logger.Logger
}

// Dispatcher queues the customer confirmation and the internal alert for a
// payment. Each request is deduplicated per payment, so repeated or racing
// reconciliation runs queue at most one of each.
type Dispatcher struct {
	emitter        emitter
	tx             txRunner
	alertRecipient string
	logg           *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Emitter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.TxRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	if strings.TrimSpace(params.AlertRecipient) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "alert recipient required")
	}
	return &Dispatcher{
		emitter:        params.Emitter,
		tx:             params.TxRunner,
		alertRecipient: strings.TrimSpace(params.AlertRecipient),
		logg:           params.Logger,
	}, nil
}

// Dispatch queues both requests in a transaction of its own. Errors are logged
// and returned for observability only; bookings are never affected.
func (d *Dispatcher) Dispatch(ctx context.Context, summary Summary) error {
	var errs error
	txErr := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		errs = d.EnqueueTx(ctx, tx, summary)
		return nil
	})
	if txErr != nil {
		errs = multierr.Append(errs, txErr)
		d.logg.Error(d.paymentCtx(ctx, summary.PaymentID), "notification transaction failed", txErr)
	}
	return errs
}

// EnqueueTx queues both requests inside tx. Each request runs in its own
// savepoint so a failed insert never aborts the caller's transaction.
func (d *Dispatcher) EnqueueTx(ctx context.Context, tx *gorm.DB, summary Summary) error {
	return d.enqueue(ctx, tx, summary, true)
}

// ConfirmTx queues only the customer confirmation inside tx.
func (d *Dispatcher) ConfirmTx(ctx context.Context, tx *gorm.DB, summary Summary) error {
	return d.enqueue(ctx, tx, summary, false)
}

type request struct {
	eventType enums.OutboxEventType
	data      any
}

func (d *Dispatcher) enqueue(ctx context.Context, tx *gorm.DB, summary Summary, withAlert bool) error {
	logCtx := d.paymentCtx(ctx, summary.PaymentID)
	if summary.Customer == nil || len(summary.Bookings) == 0 {
		err := pkgerrors.New(pkgerrors.CodeValidation, "notification summary needs a customer and bookings")
		d.logg.Error(logCtx, "notification skipped", err)
		return err
	}
	aggregateID := reference.PaymentAggregateID(summary.PaymentID)
	lines, total := bookingLines(summary)
	customerName := strings.TrimSpace(summary.Customer.FirstName + " " + summary.Customer.LastName)
	currency := summary.Currency
	if currency == "" {
		currency = summary.Bookings[0].Currency
	}

	confirmation := payloads.BookingConfirmationRequested{
		PaymentID:     summary.PaymentID,
		Source:        summary.Source,
		CustomerID:    summary.Customer.ID,
		CustomerEmail: summary.Customer.Email,
		CustomerName:  customerName,
		Bookings:      lines,
		GrandTotal:    total.StringFixed(2),
		Currency:      currency,
		DiscountCode:  summary.DiscountCode,
	}
	if summary.DiscountAmount.IsPositive() {
		confirmation.DiscountAmount = summary.DiscountAmount.StringFixed(2)
	}
	requests := []request{{enums.EventBookingConfirmationRequested, confirmation}}
	if withAlert {
		requests = append(requests, request{enums.EventBookingAlertRequested, payloads.BookingAlertRequested{
			PaymentID:     summary.PaymentID,
			Source:        summary.Source,
			Recipient:     d.alertRecipient,
			CustomerEmail: summary.Customer.Email,
			CustomerName:  customerName,
			Bookings:      lines,
			Failed:        summary.Failed,
			GrandTotal:    total.StringFixed(2),
			Currency:      currency,
		}})
	}

	var errs error
	for _, req := range requests {
		err := d.emitSavepoint(ctx, tx, outbox.DomainEvent{
			EventType:     req.eventType,
			AggregateType: enums.AggregatePayment,
			AggregateID:   aggregateID,
			PaymentRef:    summary.PaymentID,
			Source:        summary.Source,
			Data:          req.data,
		})
		if err != nil {
			d.logg.Error(d.logg.WithField(logCtx, "event_type", req.eventType), "notification request not queued", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// ReportFailure queues the internal alert for a payment that left no bookings.
func (d *Dispatcher) ReportFailure(ctx context.Context, failure Failure) error {
	payload := payloads.BookingReconcileFailed{
		PaymentID: failure.PaymentID,
		Outcome:   failure.Outcome.String(),
		Recipient: d.alertRecipient,
		Currency:  failure.Currency,
		Failed:    failure.Failed,
		Reason:    failure.Reason,
	}
	if !failure.Amount.IsZero() {
		payload.Amount = failure.Amount.StringFixed(2)
	}
	err := d.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := d.emitter.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBookingReconcileFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   reference.PaymentAggregateID(failure.PaymentID),
			PaymentRef:    failure.PaymentID,
			Source:        failure.Outcome.String(),
			Data:          payload,
		})
		return err
	})
	if err != nil {
		d.logg.Error(d.paymentCtx(ctx, failure.PaymentID), "reconcile failure alert not queued", err)
	}
	return err
}

func (d *Dispatcher) emitSavepoint(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	return tx.Transaction(func(sp *gorm.DB) error {
		queued, err := d.emitter.EmitIfNotExists(ctx, sp, event)
		if err != nil {
			return err
		}
		if !queued {
			d.logg.Info(d.logg.WithField(ctx, "event_type", event.EventType), "notification already queued")
		}
		return nil
	})
}

func (d *Dispatcher) paymentCtx(ctx context.Context, paymentID string) context.Context {
	return d.logg.WithPaymentID(ctx, paymentID)
}

func bookingLines(summary Summary) ([]payloads.BookingLine, decimal.Decimal) {
	total := decimal.Zero
	lines := make([]payloads.BookingLine, 0, len(summary.Bookings))
	for _, b := range summary.Bookings {
		total = total.Add(b.TotalPrice)
		lines = append(lines, payloads.BookingLine{
			BookingReference: b.BookingReference,
			ItemIndex:        b.ItemIndex,
			TourID:           b.TourID,
			TourTitle:        summary.TourTitles[b.TourID],
			Date:             b.TourDate,
			Time:             b.TourTime,
			AdultCount:       b.AdultCount,
			ChildCount:       b.ChildCount,
			InfantCount:      b.InfantCount,
			TotalPrice:       b.TotalPrice.StringFixed(2),
		})
	}
	return lines, total
}
