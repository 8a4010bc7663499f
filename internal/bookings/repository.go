package bookings

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
)

// Repository persists booking lines. Lookups return (nil, nil) when nothing matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) (*models.Booking, error)
	FindByReference(ctx context.Context, reference string) (*models.Booking, error)
	FindByPaymentID(ctx context.Context, paymentID string) ([]models.Booking, error)
	ConfirmPendingByPaymentID(ctx context.Context, paymentID string) (int64, error)
	ConfirmPendingByReference(ctx context.Context, reference string) (bool, error)
}
