package reconcile

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/pkg/enums"
	"github.com/angelmondragon/tourbook-backend/pkg/outbox/payloads"
)

// PaymentEvent is a captured payment as delivered by the payment provider.
// Delivery is at-least-once and unordered.
type PaymentEvent struct {
	PaymentID  string
	Metadata   map[string]string
	Amount     decimal.Decimal
	Currency   string
	ReceivedAt time.Time
}

// Result reports what a reconciliation run decided for one payment.
type Result struct {
	Outcome    enums.ReconcileOutcome
	PaymentID  string
	References []string
	Created    int
	Reused     int
	Failed     []payloads.LineFailure
}

// Count is the number of bookings the payment owns after the run.
func (r Result) Count() int {
	return r.Created + r.Reused
}
