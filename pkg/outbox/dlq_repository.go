package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
)

// DLQRepository stores notification rows the publisher stopped retrying.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// DeadLetterTx copies event into the dead-letter table. A second call for the
// same event is a no-op.
func (r *DLQRepository) DeadLetterTx(tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if !reason.IsValid() {
		return errors.New("invalid dlq reason")
	}
	var msg *string
	if cause != nil {
		m := truncateError(cause)
		msg = &m
	}
	entry := models.OutboxDLQ{
		ID:            uuid.New(),
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		PaymentRef:    event.PaymentRef,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}

	res := tx.Where("event_id = ?", event.ID).FirstOrCreate(&entry)
	return res.Error
}

func (r *DLQRepository) FindByEventID(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var dlq models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).First(&dlq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &dlq, nil
}

// ListByPaymentRef returns the dead letters of one provider payment, newest first.
func (r *DLQRepository) ListByPaymentRef(ctx context.Context, paymentRef string) ([]models.OutboxDLQ, error) {
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Where("payment_ref = ?", paymentRef).
		Order("failed_at DESC").
		Find(&rows).Error
	return rows, err
}
