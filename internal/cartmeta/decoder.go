// Package cartmeta decodes the flat metadata bag checkout attaches to a payment
// into a typed cart snapshot.
package cartmeta

import (
	"bytes"
	stdErrors "errors"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

const dateLayout = "2006-01-02"

// DecodeError reports metadata that can never produce a booking: the joined
// cart is not a JSON list, or an order-level field is malformed. Problems with
// a single line are reported on the line instead. Redelivery carries the same
// bytes, so callers must not retry.
type DecodeError struct {
	Field  string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cart metadata %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("cart metadata %s: %s", e.Field, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err carries a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return stdErrors.As(err, &de)
}

func decodeFailure(field, reason string, cause error) error {
	de := &DecodeError{Field: field, Reason: reason, Err: cause}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, de, "invalid cart metadata").
		WithDetails(map[string]any{"field": field, "reason": reason})
}

// Decode parses the metadata bag. A bag without the booking flag decodes to a
// zero PaymentMetadata with HasBookingData false and no error.
func Decode(raw map[string]string) (PaymentMetadata, error) {
	var meta PaymentMetadata
	if !parseFlag(raw[KeyBookingData]) {
		return meta, nil
	}
	meta.HasBookingData = true

	meta.Customer = Customer{
		Email:     strings.ToLower(strings.TrimSpace(raw[KeyCustomerEmail])),
		FirstName: strings.TrimSpace(raw[KeyCustomerFirstName]),
		LastName:  strings.TrimSpace(raw[KeyCustomerLastName]),
		Phone:     strings.TrimSpace(raw[KeyCustomerPhone]),
	}
	meta.HotelPickup = strings.TrimSpace(raw[KeyHotelPickup])
	meta.SpecialRequests = strings.TrimSpace(raw[KeySpecialRequests])
	meta.DiscountCode = strings.TrimSpace(raw[KeyDiscountCode])

	discount, err := parseMoney(raw[KeyDiscountTotal])
	if err != nil {
		return PaymentMetadata{}, decodeFailure(KeyDiscountTotal, "must be a non-negative amount", err)
	}
	if discount != nil {
		meta.DiscountTotal = *discount
	}

	subtotal, err := parseMoney(raw[KeySubtotal])
	if err != nil {
		return PaymentMetadata{}, decodeFailure(KeySubtotal, "must be a non-negative amount", err)
	}
	meta.Subtotal = subtotal

	location, err := parsePickupLocation(raw[KeyPickupLocation])
	if err != nil {
		return PaymentMetadata{}, decodeFailure(KeyPickupLocation, "must be a pickup location object", err)
	}
	meta.PickupLocation = location

	lines, err := decodeLines(JoinFragments(raw))
	if err != nil {
		return PaymentMetadata{}, err
	}
	meta.Lines = lines
	return meta, nil
}

// JoinFragments concatenates cartItems, cartItems2, ... in index order. The
// scan stops at the first missing fragment.
func JoinFragments(raw map[string]string) string {
	var b strings.Builder
	b.WriteString(raw[KeyCartItems])
	for i := 2; i <= maxFragments; i++ {
		part, ok := raw[KeyCartItems+strconv.Itoa(i)]
		if !ok {
			break
		}
		b.WriteString(part)
	}
	return b.String()
}

func decodeLines(payload string) ([]CartLine, error) {
	trimmed := bytes.TrimSpace([]byte(payload))
	if len(trimmed) == 0 {
		return nil, decodeFailure(KeyCartItems, "cart payload missing", nil)
	}
	var lines []CartLine
	if err := json.Unmarshal(trimmed, &lines); err != nil {
		return nil, decodeFailure(KeyCartItems, "cart payload is not a JSON list", err)
	}
	if len(lines) == 0 {
		return nil, decodeFailure(KeyCartItems, "cart is empty", nil)
	}
	for i := range lines {
		lines[i].ItemIndex = i
		lines[i].Date = normalizeDate(lines[i].Date)
		lines[i].Invalid = lineProblem(lines[i])
	}
	return lines, nil
}

// normalizeDate reduces an RFC 3339 timestamp to the calendar date it was
// written with. Checkout clients serialising a Date object send this form.
func normalizeDate(raw string) string {
	v := strings.TrimSpace(raw)
	if len(v) > len(dateLayout) && v[len(dateLayout)] == 'T' {
		if _, err := time.Parse(time.RFC3339, v); err == nil {
			return v[:len(dateLayout)]
		}
	}
	return v
}

// lineProblem describes why a line cannot be booked, or returns "".
func lineProblem(line CartLine) string {
	field := fmt.Sprintf("%s[%d]", KeyCartItems, line.ItemIndex)
	if err := validate.Struct(line); err != nil {
		var verrs validator.ValidationErrors
		if stdErrors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return field + "." + fe.Field() + " " + validationMessage(fe)
		}
		return field + " is invalid"
	}
	if line.Guests() == 0 {
		return field + " has no paying guests"
	}
	if line.BasePrice.IsNegative() {
		return field + ".p must not be negative"
	}
	if line.SelectedOption != nil && line.SelectedOption.Price.IsNegative() {
		return field + ".o.p must not be negative"
	}
	for j, addOn := range line.AddOns {
		if addOn.Price.IsNegative() {
			return fmt.Sprintf("%s.x[%d].p must not be negative", field, j)
		}
	}
	return ""
}

// ValidateCustomer checks the contact needed to own bookings.
func ValidateCustomer(c Customer) error {
	if err := validate.Struct(c); err != nil {
		details := map[string]string{}
		var verrs validator.ValidationErrors
		if stdErrors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = validationMessage(fe)
			}
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer data").WithDetails(details)
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "datetime":
		return fmt.Sprintf("must match %s", fe.Param())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	}
	return "is invalid"
}

func parseFlag(raw string) bool {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "yes" || v == "y" {
		return true
	}
	ok, err := strconv.ParseBool(v)
	return err == nil && ok
}

func parseMoney(raw string) (*decimal.Decimal, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", v)
	}
	return &d, nil
}

func parsePickupLocation(raw string) (*models.PickupLocation, error) {
	v := strings.TrimSpace(raw)
	if v == "" || v == "null" {
		return nil, nil
	}
	var loc models.PickupLocation
	if err := json.Unmarshal([]byte(v), &loc); err != nil {
		return nil, err
	}
	if strings.TrimSpace(loc.Name) == "" && strings.TrimSpace(loc.Address) == "" {
		return nil, nil
	}
	return &loc, nil
}
