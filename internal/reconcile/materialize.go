package reconcile

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/tourbook-backend/internal/cartmeta"
	"github.com/angelmondragon/tourbook-backend/internal/notifications"
	"github.com/angelmondragon/tourbook-backend/internal/pricing"
	"github.com/angelmondragon/tourbook-backend/internal/reference"
	"github.com/angelmondragon/tourbook-backend/internal/tours"
	dbpkg "github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/tourbook-backend/pkg/db/types"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

const (
	reasonInvalidLine     = "invalid cart line"
	reasonTourUnavailable = "tour unavailable"
	reasonTourLookup      = "tour lookup failed"
	reasonInsert          = "booking insert failed"
	reasonReuseLookup     = "existing booking lookup failed"
)

// lineOutcome is the result of materializing one cart line.
type lineOutcome struct {
	booking   *models.Booking
	reused    bool
	failure   string
	retryable bool
}

func (s *Service) materialize(ctx context.Context, event PaymentEvent, meta cartmeta.PaymentMetadata, result Result) (Result, error) {
	customer, err := s.customers.Resolve(ctx, meta.Customer)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeValidation {
			result.Outcome = enums.ReconcileInvalidCustomerData
			s.logg.Error(ctx, "reconcile.invalid_customer_data", err)
			s.reportFailure(ctx, event, result, "customer contact invalid: "+err.Error())
			return result, nil
		}
		return result, err
	}
	ctx = s.logg.WithCustomerEmail(ctx, customer.Email)

	currency := s.currencyOf(event)
	breakdowns := s.pricer.PriceCart(meta.Lines, meta.DiscountTotal)

	var (
		created   []models.Booking
		titles    = map[string]string{}
		retryable bool
	)
	for i, line := range meta.Lines {
		lineCtx := s.logg.WithFields(ctx, map[string]any{
			"item_index": line.ItemIndex,
			"tour_id":    line.TourID,
		})
		out := s.materializeLine(lineCtx, result.PaymentID, customer, meta, line, breakdowns[i], currency, titles)
		switch {
		case out.failure != "":
			result.Failed = append(result.Failed, payloads.LineFailure{ItemIndex: line.ItemIndex, Reason: out.failure})
			retryable = retryable || out.retryable
		case out.reused:
			result.Reused++
			created = append(created, *out.booking)
		default:
			result.Created++
			created = append(created, *out.booking)
		}
	}
	result.References = references(created)
	s.metrics.AddLines(result.Created, result.Reused, len(result.Failed))

	if len(created) == 0 {
		return s.noBookings(ctx, event, result, retryable)
	}

	summary := notifications.Summary{
		PaymentID:      result.PaymentID,
		Source:         payloads.SourceWebhookCreated,
		Customer:       customer,
		Bookings:       created,
		TourTitles:     titles,
		Failed:         result.Failed,
		Currency:       currency,
		DiscountCode:   meta.DiscountCode,
		DiscountAmount: meta.DiscountTotal,
	}
	if err := s.notifier.Dispatch(ctx, summary); err != nil {
		s.logg.Warn(ctx, "booking notifications not queued")
	}

	result.Outcome = enums.ReconcileCreated
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"created":    result.Created,
		"reused":     result.Reused,
		"failed":     len(result.Failed),
		"references": result.References,
	}), "reconcile.created")
	return result, nil
}

func (s *Service) materializeLine(
	ctx context.Context,
	paymentID string,
	customer *models.Customer,
	meta cartmeta.PaymentMetadata,
	line cartmeta.CartLine,
	price pricing.Breakdown,
	currency string,
	titles map[string]string,
) lineOutcome {
	if !line.Bookable() {
		s.logg.Warn(s.logg.WithField(ctx, "reason", line.Invalid), "cart line skipped: invalid line")
		return lineOutcome{failure: reasonInvalidLine + ": " + line.Invalid}
	}
	tour, err := s.tours.RequireBookable(ctx, line.TourID)
	if err != nil {
		if errors.Is(err, tours.ErrTourUnavailable) {
			s.logg.Warn(ctx, "cart line skipped: tour unavailable")
			return lineOutcome{failure: reasonTourUnavailable}
		}
		s.logg.Error(ctx, "cart line skipped: tour lookup failed", err)
		return lineOutcome{failure: reasonTourLookup, retryable: true}
	}
	titles[tour.ID] = tour.Title

	booking := buildBooking(paymentID, customer, meta, line, price, currency)
	stored, err := s.bookings.Create(ctx, booking)
	if err == nil {
		s.logg.Debug(s.logg.WithBookingReference(ctx, stored.BookingReference), "booking created")
		return lineOutcome{booking: stored}
	}
	if !dbpkg.IsUniqueViolation(err, "") {
		s.logg.Error(ctx, "cart line skipped: booking insert failed", err)
		return lineOutcome{failure: reasonInsert, retryable: true}
	}

	existing, err := s.findExisting(ctx, paymentID, line.ItemIndex, booking.BookingReference)
	if err != nil || existing == nil {
		s.logg.Error(ctx, "cart line skipped: conflicting booking not readable", err)
		return lineOutcome{failure: reasonReuseLookup, retryable: true}
	}
	if existing.Status == enums.BookingStatusPending {
		ok, err := s.bookings.ConfirmPendingByReference(ctx, existing.BookingReference)
		if err != nil {
			s.logg.Error(ctx, "reused pending booking not confirmed", err)
		} else if ok {
			existing.Status = enums.BookingStatusConfirmed
			s.logg.Info(s.logg.WithBookingReference(ctx, existing.BookingReference), "reused pending booking confirmed")
		}
	}
	return lineOutcome{booking: existing, reused: true}
}

// findExisting reads the row that won the insert race. The winner normally
// carries the same reference; a row keyed only by (payment, item) is found by
// scanning the payment's lines.
func (s *Service) findExisting(ctx context.Context, paymentID string, itemIndex int, ref string) (*models.Booking, error) {
	existing, err := s.bookings.FindByReference(ctx, ref)
	if err != nil || existing != nil {
		return existing, err
	}
	rows, err := s.bookings.FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].ItemIndex == itemIndex {
			return &rows[i], nil
		}
	}
	return nil, nil
}

// reportFailure queues the operations alert for a captured payment that left
// no bookings. Queueing errors are logged only.
func (s *Service) reportFailure(ctx context.Context, event PaymentEvent, result Result, reason string) {
	err := s.notifier.ReportFailure(ctx, notifications.Failure{
		PaymentID: result.PaymentID,
		Outcome:   result.Outcome,
		Amount:    event.Amount,
		Currency:  s.currencyOf(event),
		Failed:    result.Failed,
		Reason:    reason,
	})
	if err != nil {
		s.logg.Warn(ctx, "reconcile failure alert not queued")
	}
}

func (s *Service) currencyOf(event PaymentEvent) string {
	if currency := strings.ToLower(strings.TrimSpace(event.Currency)); currency != "" {
		return currency
	}
	return s.defaultCurrency
}

func (s *Service) noBookings(ctx context.Context, event PaymentEvent, result Result, retryable bool) (Result, error) {
	result.Outcome = enums.ReconcileNoBookingsCreated
	err := pkgerrors.New(pkgerrors.CodeValidation, "payment produced no bookings").
		WithDetails(map[string]any{"failed": result.Failed})
	if retryable {
		err = pkgerrors.New(pkgerrors.CodeDependency, "payment produced no bookings").
			WithDetails(map[string]any{"failed": result.Failed})
	}
	s.logg.Error(s.logg.WithField(ctx, "failed", result.Failed), "reconcile.no_bookings_created", err)
	s.reportFailure(ctx, event, result, err.Message())

	if retryable {
		return result, err
	}
	return result, nil
}

func buildBooking(
	paymentID string,
	customer *models.Customer,
	meta cartmeta.PaymentMetadata,
	line cartmeta.CartLine,
	price pricing.Breakdown,
	currency string,
) *models.Booking {
	booking := &models.Booking{
		ID:               reference.BookingID(paymentID, line.ItemIndex),
		BookingReference: reference.For(paymentID, line.ItemIndex),
		PaymentID:        paymentID,
		ItemIndex:        line.ItemIndex,
		TourID:           line.TourID,
		CustomerID:       customer.ID,
		TourDate:         line.Date,
		TourTime:         line.Time,
		AdultCount:       line.AdultCount,
		ChildCount:       line.ChildCount,
		InfantCount:      line.InfantCount,
		Subtotal:         price.Subtotal,
		ServiceFee:       price.ServiceFee,
		Tax:              price.Tax,
		TotalPrice:       price.FinalTotal,
		Currency:         currency,
		Status:           enums.BookingStatusConfirmed,
		AddOnSelections:  dbtypes.NewJSON(line.AddOnSnapshots()),
	}
	if opt := line.OptionSnapshot(); opt != nil {
		wrapped := dbtypes.NewJSON(*opt)
		booking.SelectedOption = &wrapped
	}
	if meta.DiscountCode != "" {
		code := meta.DiscountCode
		booking.DiscountCode = &code
	}
	if price.DiscountShare.IsPositive() {
		share := price.DiscountShare
		booking.DiscountAmount = &share
	}
	if meta.HotelPickup != "" {
		pickup := meta.HotelPickup
		booking.PickupDetails = &pickup
	}
	if meta.PickupLocation != nil {
		location := dbtypes.NewJSON(*meta.PickupLocation)
		booking.PickupLocation = &location
	}
	if meta.SpecialRequests != "" {
		requests := meta.SpecialRequests
		booking.SpecialRequests = &requests
	}
	return booking
}
