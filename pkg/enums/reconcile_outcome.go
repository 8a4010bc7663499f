package enums

// ReconcileOutcome is the verdict of one payment reconciliation run.
type ReconcileOutcome string

const (
	ReconcileSkipped             ReconcileOutcome = "skipped"
	ReconcileUpdated             ReconcileOutcome = "updated"
	ReconcileAlreadyConfirmed    ReconcileOutcome = "already_confirmed"
	ReconcileAlreadyProcessed    ReconcileOutcome = "already_processed"
	ReconcileCreated             ReconcileOutcome = "created"
	ReconcileInvalidCartData     ReconcileOutcome = "invalid_cart_data"
	ReconcileInvalidCustomerData ReconcileOutcome = "invalid_customer_data"
	ReconcileNoBookingsCreated   ReconcileOutcome = "no_bookings_created"
)

// String implements fmt.Stringer.
func (o ReconcileOutcome) String() string {
	return string(o)
}

// IsFailure reports outcomes where a captured payment has no durable booking.
func (o ReconcileOutcome) IsFailure() bool {
	switch o {
	case ReconcileInvalidCartData, ReconcileInvalidCustomerData, ReconcileNoBookingsCreated:
		return true
	default:
		return false
	}
}
