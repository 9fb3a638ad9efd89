package outbox_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/jemi-ng/pickup-backend/pkg/db/dbtest"
	"github.com/jemi-ng/pickup-backend/pkg/db/models"
	"github.com/jemi-ng/pickup-backend/pkg/enums"
	"github.com/jemi-ng/pickup-backend/pkg/outbox"
	"github.com/jemi-ng/pickup-backend/pkg/outbox/payloads"
)

func emit(t *testing.T, conn *gorm.DB, svc *outbox.Service, eventType enums.OutboxEventType) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     eventType,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{UserID: uuid.New(), Role: enums.RoleCustomer.String()},
			Data:          payloads.OrderCanceledEvent{OrderID: id, OrderNumber: "JM-20260301-AB12"},
		})
	})
	require.NoError(t, err)
	return id
}

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	id := emit(t, conn, svc, enums.EventOrderCanceled)

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row, "aggregate_id = ?", id).Error)
	assert.Equal(t, enums.EventOrderCanceled, row.EventType)
	assert.Nil(t, row.PublishedAt)

	envelope, err := outbox.DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	assert.False(t, envelope.OccurredAt.IsZero())
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, "customer", envelope.Actor.Role)
	assert.Contains(t, string(envelope.Data), "JM-20260301-AB12")
}

func TestEmitRejectsUnknownTypesAndMissingTx(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	err := svc.Emit(context.Background(), nil, outbox.DomainEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder})
	require.Error(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{EventType: "order_lost", AggregateType: enums.AggregateOrder})
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)
	boom := errors.New("state change failed")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Data:          payloads.OrderCreatedEvent{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRepositoryFetchSkipsPublishedAndExhaustedRows(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)

	published := emit(t, conn, svc, enums.EventOrderCanceled)
	failing := emit(t, conn, svc, enums.EventOrderCanceled)
	parked := emit(t, conn, svc, enums.EventOrderCanceled)
	fresh := emit(t, conn, svc, enums.EventOrderCanceled)

	rowID := func(aggregateID uuid.UUID) uuid.UUID {
		var row models.OutboxEvent
		require.NoError(t, conn.First(&row, "aggregate_id = ?", aggregateID).Error)
		return row.ID
	}

	require.NoError(t, repo.MarkPublishedTx(conn, rowID(published)))
	require.NoError(t, repo.MarkFailedTx(conn, rowID(failing), errors.New("redis timeout")))
	require.NoError(t, repo.MarkTerminalTx(conn, rowID(parked), errors.New("bad payload"), 3))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)

	var got []uuid.UUID
	for _, row := range rows {
		got = append(got, row.AggregateID)
	}
	assert.ElementsMatch(t, []uuid.UUID{failing, fresh}, got)

	for _, row := range rows {
		if row.AggregateID == failing {
			assert.Equal(t, 1, row.AttemptCount)
			require.NotNil(t, row.LastError)
			assert.Equal(t, "redis timeout", *row.LastError)
		}
	}
}
