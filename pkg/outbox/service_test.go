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

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payment_ref TEXT,
  payload BLOB NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);
CREATE UNIQUE INDEX ux_outbox_events_event_aggregate ON outbox_events (event_type, aggregate_type, aggregate_id);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func TestEmitWritesEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	aggregateID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventBookingAlertRequested,
			AggregateType: enums.AggregatePayment,
			AggregateID:   aggregateID,
			PaymentRef:    " pi_1 ",
			Source:        "test",
			Data:          map[string]string{"payment_id": "pi_1"},
		})
	})
	require.NoError(t, err)

	byRef, err := repo.FindByPaymentRef("pi_1")
	require.NoError(t, err)
	require.Len(t, byRef, 1)
	require.NotNil(t, byRef[0].PaymentRef)
	assert.Equal(t, "pi_1", *byRef[0].PaymentRef)

	rows, err := repo.FindByAggregate(enums.AggregatePayment, aggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	assert.Equal(t, 1, envelope.Version)
	assert.Equal(t, "test", envelope.Source)
	assert.JSONEq(t, `{"payment_id":"pi_1"}`, string(envelope.Data))
}

func TestEmitIfNotExistsQueuesOnce(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	event := DomainEvent{
		EventType:     enums.EventBookingConfirmationRequested,
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
		Data:          map[string]string{"payment_id": "pi_2"},
	}

	var first, second bool
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		first, err = svc.EmitIfNotExists(context.Background(), tx, event)
		return err
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		var err error
		second, err = svc.EmitIfNotExists(context.Background(), tx, event)
		return err
	}))

	assert.True(t, first)
	assert.False(t, second)
	rows, err := repo.FindByAggregate(enums.AggregatePayment, event.AggregateID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].PaymentRef)
}

func TestInsertIfAbsentSkipsConflictingRow(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	aggregateID := uuid.New()
	row := func() models.OutboxEvent {
		return models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventBookingReconcileFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   aggregateID,
			Payload:       json.RawMessage(`{}`),
		}
	}

	inserted, err := repo.InsertIfAbsent(db, row())
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsent(db, row())
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	err := svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.OutboxEventType("nope"),
		AggregateType: enums.AggregatePayment,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
}

func TestPublishBookkeeping(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)
	for _, eventType := range []enums.OutboxEventType{enums.EventBookingConfirmationRequested, enums.EventBookingAlertRequested} {
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregatePayment,
			AggregateID:   uuid.New(),
			Data:          struct{}{},
		}))
	}

	rows, err := repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NoError(t, repo.MarkPublishedTx(db, rows[0].ID))
	require.NoError(t, repo.MarkFailedTx(db, rows[1].ID, errors.New("unavailable")))

	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1, rows[0].AttemptCount)
	require.NotNil(t, rows[0].LastError)
	assert.Equal(t, "unavailable", *rows[0].LastError)

	require.NoError(t, repo.MarkTerminalTx(db, rows[0].ID, errors.New("gave up"), 3))
	rows, err = repo.FetchUnpublishedForPublish(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
