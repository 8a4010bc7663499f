package payloads

import "github.com/google/uuid"

// Notification sources.
const (
	SourceWebhookCreated   = "webhook_created"
	SourcePendingConfirmed = "pending_confirmed"
)

// BookingLine summarises one booking for downstream templates. Money fields are
// fixed two-decimal strings.
type BookingLine struct {
	BookingReference string `json:"booking_reference"`
	ItemIndex        int    `json:"item_index"`
	TourID           string `json:"tour_id"`
	TourTitle        string `json:"tour_title,omitempty"`
	Date             string `json:"date"`
	Time             string `json:"time,omitempty"`
	AdultCount       int    `json:"adult_count"`
	ChildCount       int    `json:"child_count"`
	InfantCount      int    `json:"infant_count"`
	TotalPrice       string `json:"total_price"`
}

// LineFailure records a cart line that produced no booking.
type LineFailure struct {
	ItemIndex int    `json:"item_index"`
	Reason    string `json:"reason"`
}

// BookingConfirmationRequested asks the mailer to send the customer confirmation.
type BookingConfirmationRequested struct {
	PaymentID      string        `json:"payment_id"`
	Source         string        `json:"source"`
	CustomerID     uuid.UUID     `json:"customer_id"`
	CustomerEmail  string        `json:"customer_email"`
	CustomerName   string        `json:"customer_name,omitempty"`
	Bookings       []BookingLine `json:"bookings"`
	GrandTotal     string        `json:"grand_total"`
	Currency       string        `json:"currency"`
	DiscountCode   string        `json:"discount_code,omitempty"`
	DiscountAmount string        `json:"discount_amount,omitempty"`
}

// BookingAlertRequested asks the mailer to notify operations about new bookings.
type BookingAlertRequested struct {
	PaymentID     string        `json:"payment_id"`
	Source        string        `json:"source"`
	Recipient     string        `json:"recipient"`
	CustomerEmail string        `json:"customer_email"`
	CustomerName  string        `json:"customer_name,omitempty"`
	Bookings      []BookingLine `json:"bookings"`
	Failed        []LineFailure `json:"failed,omitempty"`
	GrandTotal    string        `json:"grand_total"`
	Currency      string        `json:"currency"`
}

// BookingReconcileFailed reports a captured payment that left no booking behind.
type BookingReconcileFailed struct {
	PaymentID string        `json:"payment_id"`
	Outcome   string        `json:"outcome"`
	Recipient string        `json:"recipient"`
	Amount    string        `json:"amount,omitempty"`
	Currency  string        `json:"currency,omitempty"`
	Failed    []LineFailure `json:"failed,omitempty"`
	Reason    string        `json:"reason,omitempty"`
}

// PaymentScoped is implemented by every payload keyed to one captured payment.
type PaymentScoped interface {
	PaymentRef() string
}

func (p BookingConfirmationRequested) PaymentRef() string { return p.PaymentID }

func (p BookingAlertRequested) PaymentRef() string { return p.PaymentID }

func (p BookingReconcileFailed) PaymentRef() string { return p.PaymentID }
