package bookings

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bookings repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create inserts the booking. Unique violations on ux_bookings_reference or
// ux_bookings_payment_item are returned untouched for the caller to classify.
func (r *repository) Create(ctx context.Context, booking *models.Booking) (*models.Booking, error) {
	if err := r.db.WithContext(ctx).Create(booking).Error; err != nil {
		return nil, err
	}
	return booking, nil
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Where("booking_reference = ?", reference).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) FindByPaymentID(ctx context.Context, paymentID string) ([]models.Booking, error) {
	var rows []models.Booking
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("item_index ASC").
		Find(&rows).Error
	return rows, err
}

// ConfirmPendingByPaymentID flips every pending line of the payment to
// confirmed and reports how many rows this call changed. Concurrent callers
// race on the status predicate, so exactly one of them sees a non-zero count.
func (r *repository) ConfirmPendingByPaymentID(ctx context.Context, paymentID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("payment_id = ? AND status = ?", paymentID, enums.BookingStatusPending).
		Updates(map[string]any{
			"status":     enums.BookingStatusConfirmed,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

// ConfirmPendingByReference flips one pending line to confirmed.
func (r *repository) ConfirmPendingByReference(ctx context.Context, reference string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("booking_reference = ? AND status = ?", reference, enums.BookingStatusPending).
		Updates(map[string]any{
			"status":     enums.BookingStatusConfirmed,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected > 0, res.Error
}
