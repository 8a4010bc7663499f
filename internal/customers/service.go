package customers

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tourbook-backend/internal/cartmeta"
	dbpkg "github.com/angelmondragon/tourbook-backend/pkg/db"
	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tourbook-backend/pkg/errors"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const emailConstraint = "ux_customers_email"

type repository interface {
	Create(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	FindByEmail(ctx context.Context, email string) (*models.Customer, error)
	FindByID(ctx context.Context, id string) (*models.Customer, error)
}

// Service resolves the account that owns a payment's bookings.
type Service struct {
	repo repository
	logg *logger.Logger
}

func NewService(repo repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "customers repository required")
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Resolve returns the customer for the contact's email, creating a guest
// account when none exists. Losing a creation race re-reads the winner.
func (s *Service) Resolve(ctx context.Context, contact cartmeta.Customer) (*models.Customer, error) {
	if err := cartmeta.ValidateCustomer(contact); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(contact.Email))

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer by email")
	}
	if existing != nil {
		return existing, nil
	}

	guest := &models.Customer{
		ID:        uuid.New(),
		Email:     email,
		FirstName: contact.FirstName,
		LastName:  contact.LastName,
		IsGuest:   true,
	}
	if phone := strings.TrimSpace(contact.Phone); phone != "" {
		guest.Phone = &phone
	}

	created, err := s.repo.Create(ctx, guest)
	if err == nil {
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "customer_id", created.ID.String()), "guest customer created")
		}
		return created, nil
	}
	if !dbpkg.IsUniqueViolation(err, emailConstraint) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create guest customer")
	}

	winner, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "re-read customer after email conflict")
	}
	if winner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer missing after email conflict")
	}
	return winner, nil
}

// FindByID loads a customer for notification rendering.
func (s *Service) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	customer, err := s.repo.FindByID(ctx, id.String())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup customer by id")
	}
	return customer, nil
}
