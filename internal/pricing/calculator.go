// Package pricing computes the per-line money breakdown pinned onto bookings.
// Every intermediate amount is rounded half away from zero to cents.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tourbook-backend/internal/cartmeta"
)

var (
	two  = decimal.NewFromInt(2)
	zero = decimal.Zero
)

// Breakdown is the priced view of one cart line.
type Breakdown struct {
	AddOnSubtotal    decimal.Decimal
	Subtotal         decimal.Decimal
	ServiceFee       decimal.Decimal
	Tax              decimal.Decimal
	PreDiscountTotal decimal.Decimal
	DiscountShare    decimal.Decimal
	FinalTotal       decimal.Decimal
}

// Calculator applies the configured service fee and tax rates.
type Calculator struct {
	serviceFeeRate decimal.Decimal
	taxRate        decimal.Decimal
}

// DefaultServiceFeeRate and DefaultTaxRate are the rates checkout charges today.
var (
	DefaultServiceFeeRate = decimal.RequireFromString("0.03")
	DefaultTaxRate        = decimal.RequireFromString("0.05")
)

func NewCalculator(serviceFeeRate, taxRate decimal.Decimal) (*Calculator, error) {
	if serviceFeeRate.IsNegative() || taxRate.IsNegative() {
		return nil, fmt.Errorf("pricing rates must not be negative")
	}
	return &Calculator{serviceFeeRate: serviceFeeRate, taxRate: taxRate}, nil
}

// NewDefaultCalculator uses DefaultServiceFeeRate and DefaultTaxRate.
func NewDefaultCalculator() *Calculator {
	return &Calculator{serviceFeeRate: DefaultServiceFeeRate, taxRate: DefaultTaxRate}
}

func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// LineSubtotal prices guests and add-ons. Children pay half the base price;
// per-guest add-ons are multiplied by adults plus children.
func (c *Calculator) LineSubtotal(line cartmeta.CartLine) (subtotal, addOns decimal.Decimal) {
	guests := decimal.NewFromInt(int64(line.Guests()))
	addOns = zero
	for _, a := range line.AddOns {
		amount := a.Price.Mul(decimal.NewFromInt(int64(a.Quantity)))
		if a.PerGuest {
			amount = amount.Mul(guests)
		}
		addOns = addOns.Add(amount)
	}
	adults := line.BasePrice.Mul(decimal.NewFromInt(int64(line.AdultCount)))
	children := line.BasePrice.Div(two).Mul(decimal.NewFromInt(int64(line.ChildCount)))
	return round2(adults.Add(children).Add(addOns)), addOns
}

// PriceLine prices one line given its share of the order discount.
func (c *Calculator) PriceLine(line cartmeta.CartLine, discountShare decimal.Decimal) Breakdown {
	subtotal, addOns := c.LineSubtotal(line)
	fee := round2(subtotal.Mul(c.serviceFeeRate))
	tax := round2(subtotal.Mul(c.taxRate))
	pre := subtotal.Add(fee).Add(tax)
	final := pre.Sub(discountShare)
	if final.IsNegative() {
		final = zero
	}
	return Breakdown{
		AddOnSubtotal:    addOns,
		Subtotal:         subtotal,
		ServiceFee:       fee,
		Tax:              tax,
		PreDiscountTotal: pre,
		DiscountShare:    discountShare,
		FinalTotal:       final,
	}
}

// DiscountShares splits the order discount across line subtotals. A single line
// takes the whole discount. Otherwise each share is rounded independently and
// the rounding residue is left unallocated, matching what checkout charged.
func DiscountShares(subtotals []decimal.Decimal, totalDiscount decimal.Decimal) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(subtotals))
	for i := range shares {
		shares[i] = zero
	}
	if len(subtotals) == 0 || !totalDiscount.IsPositive() {
		return shares
	}
	if len(subtotals) == 1 {
		shares[0] = totalDiscount
		return shares
	}
	sum := zero
	for _, s := range subtotals {
		sum = sum.Add(s)
	}
	if !sum.IsPositive() {
		return shares
	}
	for i, s := range subtotals {
		shares[i] = round2(s.Div(sum).Mul(totalDiscount))
	}
	return shares
}

// PriceCart prices every line of the cart, allocating the order discount
// across all lines including ones that later fail to materialize.
func (c *Calculator) PriceCart(lines []cartmeta.CartLine, totalDiscount decimal.Decimal) []Breakdown {
	subtotals := make([]decimal.Decimal, len(lines))
	for i, line := range lines {
		subtotals[i], _ = c.LineSubtotal(line)
	}
	shares := DiscountShares(subtotals, totalDiscount)
	out := make([]Breakdown, len(lines))
	for i, line := range lines {
		out[i] = c.PriceLine(line, shares[i])
	}
	return out
}
