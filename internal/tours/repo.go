package tours

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
)

// ErrTourUnavailable is returned when a cart references a tour that does not
// exist or no longer sells.
var ErrTourUnavailable = errors.New("tour unavailable")

// Repository reads the tour catalog.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID returns the tour, or nil when it is missing.
func (r *Repository) FindByID(ctx context.Context, id string) (*models.Tour, error) {
	var tour models.Tour
	if err := r.db.WithContext(ctx).First(&tour, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tour, nil
}

// RequireBookable returns the tour or ErrTourUnavailable when it is missing or inactive.
func (r *Repository) RequireBookable(ctx context.Context, id string) (*models.Tour, error) {
	tour, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tour == nil || !tour.IsActive {
		return nil, ErrTourUnavailable
	}
	return tour, nil
}
