package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/angelmondragon/tourbook-backend/pkg/db/types"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
)

// SelectedOption is the tour variant chosen for a booking line.
type SelectedOption struct {
	ID    string          `json:"id"`
	Title string          `json:"title"`
	Price decimal.Decimal `json:"price"`
}

// AddOnSelection is an extra purchased with a booking line.
type AddOnSelection struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Price    decimal.Decimal `json:"price"`
	PerGuest bool            `json:"perGuest"`
	Quantity int             `json:"quantity"`
}

// PickupLocation is the optional structured hotel pickup point.
type PickupLocation struct {
	Name    string   `json:"name"`
	Address string   `json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`
}

// Booking is one materialized reservation line of a paid order. Sibling lines of the
// same payment share PaymentID and differ by ItemIndex.
type Booking struct {
	ID               uuid.UUID                      `gorm:"column:id;type:uuid;primaryKey"`
	BookingReference string                         `gorm:"column:booking_reference;not null;uniqueIndex:ux_bookings_reference"`
	PaymentID        string                         `gorm:"column:payment_id;not null;uniqueIndex:ux_bookings_payment_item,priority:1"`
	ItemIndex        int                            `gorm:"column:item_index;not null;uniqueIndex:ux_bookings_payment_item,priority:2"`
	TourID           string                         `gorm:"column:tour_id;not null"`
	CustomerID       uuid.UUID                      `gorm:"column:customer_id;type:uuid;not null"`
	TourDate         string                         `gorm:"column:tour_date;not null"`
	TourTime         string                         `gorm:"column:tour_time"`
	AdultCount       int                            `gorm:"column:adult_count;not null"`
	ChildCount       int                            `gorm:"column:child_count;not null"`
	InfantCount      int                            `gorm:"column:infant_count;not null"`
	Subtotal         decimal.Decimal                `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ServiceFee       decimal.Decimal                `gorm:"column:service_fee;type:numeric(12,2);not null"`
	Tax              decimal.Decimal                `gorm:"column:tax;type:numeric(12,2);not null"`
	TotalPrice       decimal.Decimal                `gorm:"column:total_price;type:numeric(12,2);not null"`
	Currency         string                         `gorm:"column:currency;not null"`
	Status           enums.BookingStatus            `gorm:"column:status;not null"`
	SelectedOption   *dbtypes.JSON[SelectedOption]  `gorm:"column:selected_option;type:jsonb"`
	AddOnSelections  dbtypes.JSON[[]AddOnSelection] `gorm:"column:add_on_selections;type:jsonb;not null"`
	DiscountCode     *string                        `gorm:"column:discount_code"`
	DiscountAmount   *decimal.Decimal               `gorm:"column:discount_amount;type:numeric(12,2)"`
	PickupDetails    *string                        `gorm:"column:pickup_details"`
	PickupLocation   *dbtypes.JSON[PickupLocation]  `gorm:"column:pickup_location;type:jsonb"`
	SpecialRequests  *string                        `gorm:"column:special_requests"`
	CreatedAt        time.Time                      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                      `gorm:"column:updated_at;autoUpdateTime"`
}
