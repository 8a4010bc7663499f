package cartmeta

// Metadata keys written by checkout onto the payment.
const (
	KeyBookingData       = "bookingData"
	KeyCustomerEmail     = "customerEmail"
	KeyCustomerFirstName = "customerFirstName"
	KeyCustomerLastName  = "customerLastName"
	KeyCustomerPhone     = "customerPhone"
	KeyHotelPickup       = "hotelPickup"
	KeyPickupLocation    = "pickupLocation"
	KeySpecialRequests   = "specialRequests"
	KeyDiscountCode      = "discountCode"
	KeyDiscountTotal     = "discountTotal"
	KeySubtotal          = "subtotal"

	// KeyCartItems holds the first cart fragment. Later fragments use the same
	// key suffixed with 2, 3, ... and must be contiguous.
	KeyCartItems = "cartItems"
)

// maxFragments bounds the fragment scan; the payment provider caps metadata at 50 keys.
const maxFragments = 50
