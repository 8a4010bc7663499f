package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tourbook-backend/pkg/db/models"
	"github.com/angelmondragon/tourbook-backend/pkg/enums"
)

func setupDLQTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`
CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payment_ref TEXT,
  payload BLOB NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL,
  failed_at DATETIME NOT NULL,
  created_at DATETIME
);
CREATE UNIQUE INDEX ux_outbox_dlq_event_id ON outbox_dlq (event_id);`).Error)
	return db
}

func deadEvent(paymentRef string) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventBookingAlertRequested,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		PaymentRef:    &paymentRef,
		Payload:       json.RawMessage(`{"event_id":"x"}`),
		AttemptCount:  4,
	}
}

func TestDLQDeadLetterTxKeepsFirstEntry(t *testing.T) {
	db := setupDLQTestDB(t)
	repo := NewDLQRepository(db)
	event := deadEvent("pi_dead")

	require.NoError(t, repo.DeadLetterTx(db, event, enums.OutboxDLQReasonMaxAttempts, errors.New("topic down")))
	require.NoError(t, repo.DeadLetterTx(db, event, enums.OutboxDLQReasonNonRetryable, errors.New("again")))

	entry, err := repo.FindByEventID(context.Background(), event.ID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Equal(t, "topic down", *entry.ErrorMessage)
	assert.Equal(t, 4, entry.AttemptCount)

	rows, err := repo.ListByPaymentRef(context.Background(), "pi_dead")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDLQDeadLetterTxValidation(t *testing.T) {
	db := setupDLQTestDB(t)
	repo := NewDLQRepository(db)

	assert.Error(t, repo.DeadLetterTx(nil, deadEvent("pi_x"), enums.OutboxDLQReasonMaxAttempts, nil))
	assert.Error(t, repo.DeadLetterTx(db, deadEvent("pi_x"), enums.OutboxDLQErrorReason("bored"), nil))

	missing, err := repo.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
