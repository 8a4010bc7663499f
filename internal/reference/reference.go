// Package reference derives booking identity from payment identity.
//
// The reference for (paymentID, itemIndex) is the idempotency key of the whole
// reconciliation flow: the checkout writer and the webhook reconciler compute it
// independently and rely on the bookings unique index to converge on one row.
// Changing the namespace or encoding orphans every existing booking.
package reference

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const prefix = "TB-"

// encodedBytes of the UUIDv5 digest kept in the human-facing reference (64 bits).
const encodedBytes = 8

var namespace = uuid.MustParse("6f1c4a52-9d0e-5b8e-a7c1-3b2f0e4d9a61")

// BookingID returns the deterministic primary key for a booking line.
func BookingID(paymentID string, itemIndex int) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte(paymentID+"#"+strconv.Itoa(itemIndex)))
}

// For returns the booking reference for a payment line, e.g. "TB-3F9A0C1D7E22B845".
func For(paymentID string, itemIndex int) string {
	id := BookingID(paymentID, itemIndex)
	return prefix + strings.ToUpper(hex.EncodeToString(id[:encodedBytes]))
}

// PaymentAggregateID groups everything emitted for one payment under a stable id.
func PaymentAggregateID(paymentID string) uuid.UUID {
	return uuid.NewSHA1(namespace, []byte("payment#"+paymentID))
}

// Validate reports whether ref has the shape produced by For.
func Validate(ref string) error {
	body, ok := strings.CutPrefix(ref, prefix)
	if !ok {
		return fmt.Errorf("reference %q missing %q prefix", ref, prefix)
	}
	if len(body) != encodedBytes*2 {
		return fmt.Errorf("reference %q has %d characters, want %d", ref, len(body), encodedBytes*2)
	}
	if _, err := hex.DecodeString(body); err != nil {
		return fmt.Errorf("reference %q is not hex encoded: %w", ref, err)
	}
	return nil
}
