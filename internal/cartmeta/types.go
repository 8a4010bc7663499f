package cartmeta

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
)

// Customer is the contact captured at checkout.
type Customer struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	FirstName string `json:"firstName" validate:"max=100"`
	LastName  string `json:"lastName" validate:"max=100"`
	Phone     string `json:"phone" validate:"max=40"`
}

// PaymentMetadata is the typed view of a payment's metadata bag.
type PaymentMetadata struct {
	HasBookingData  bool
	Customer        Customer
	HotelPickup     string
	PickupLocation  *models.PickupLocation
	SpecialRequests string
	DiscountCode    string
	DiscountTotal   decimal.Decimal
	// Subtotal is the cart subtotal checkout displayed; informational only.
	Subtotal *decimal.Decimal
	Lines    []CartLine
}

// CartLine is one decoded cart entry. ItemIndex is its position in the cart.
// Invalid is set when the line parsed but cannot be booked; sibling lines are
// unaffected.
type CartLine struct {
	ItemIndex      int             `json:"-"`
	Invalid        string          `json:"-"`
	TourID         string          `json:"t" validate:"required,max=128"`
	Date           string          `json:"d" validate:"required,datetime=2006-01-02"`
	Time           string          `json:"tm" validate:"omitempty,max=16"`
	AdultCount     int             `json:"a" validate:"gte=0,lte=100"`
	ChildCount     int             `json:"c" validate:"gte=0,lte=100"`
	InfantCount    int             `json:"i" validate:"gte=0,lte=100"`
	BasePrice      decimal.Decimal `json:"p"`
	SelectedOption *Option         `json:"o,omitempty"`
	AddOns         []AddOn         `json:"x,omitempty" validate:"dive"`
}

// Option is the tour variant chosen for a line.
type Option struct {
	ID    string          `json:"id" validate:"required"`
	Title string          `json:"t"`
	Price decimal.Decimal `json:"p"`
}

// AddOn is an extra purchased with a line.
type AddOn struct {
	ID       string          `json:"id" validate:"required"`
	Title    string          `json:"t"`
	Price    decimal.Decimal `json:"p"`
	PerGuest bool            `json:"g"`
	Quantity int             `json:"q" validate:"gte=1,lte=100"`
}

// Bookable reports whether the line passed validation.
func (l CartLine) Bookable() bool {
	return l.Invalid == ""
}

// Guests counts the paying guests of the line. Infants ride free.
func (l CartLine) Guests() int {
	return l.AdultCount + l.ChildCount
}

// OptionSnapshot converts the selected option to its stored form.
func (l CartLine) OptionSnapshot() *models.SelectedOption {
	if l.SelectedOption == nil {
		return nil
	}
	return &models.SelectedOption{
		ID:    l.SelectedOption.ID,
		Title: l.SelectedOption.Title,
		Price: l.SelectedOption.Price,
	}
}

// AddOnSnapshots converts the add-ons to their stored form.
func (l CartLine) AddOnSnapshots() []models.AddOnSelection {
	out := make([]models.AddOnSelection, 0, len(l.AddOns))
	for _, a := range l.AddOns {
		out = append(out, models.AddOnSelection{
			ID:       a.ID,
			Title:    a.Title,
			Price:    a.Price,
			PerGuest: a.PerGuest,
			Quantity: a.Quantity,
		})
	}
	return out
}
