package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/pkg/db/dbtest"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
	"github.com/angelmondragon/replenish-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	svc := outbox.NewService(repo, nil)
	ctx := context.Background()

	requestID := uuid.New()
	actor := &outbox.ActorRef{UserID: uuid.New(), Role: "dc_staff"}
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestCreated,
			AggregateType: enums.AggregateReplenishmentRequest,
			AggregateID:   requestID,
			Actor:         actor,
			Data:          payloads.RequestIntent{Type: enums.EventRequestCreated, RequestID: requestID, ToStatus: enums.ReplenishmentStatusRequested},
		})
	}))

	var rows []models.OutboxEvent
	require.NoError(t, client.DB().Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, requestID, rows[0].AggregateID)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, actor.UserID, envelope.Actor.UserID)

	var intent payloads.RequestIntent
	require.NoError(t, json.Unmarshal(envelope.Data, &intent))
	assert.Equal(t, enums.ReplenishmentStatusRequested, intent.ToStatus)
}

func TestEmitRollsBackWithCaller(t *testing.T) {
	client := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(client.DB()), nil)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventInventoryStockAlert,
			AggregateType: enums.AggregateInventoryRecord,
			AggregateID:   uuid.New(),
			Data:          payloads.StockAlert{Shortfall: 1},
		}); err != nil {
			return err
		}
		return errors.New("later step failed")
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, client.DB().Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsUnknownTypesAndMissingTx(t *testing.T) {
	svc := outbox.NewService(outbox.NewRepository(nil), nil)
	ctx := context.Background()

	assert.Error(t, svc.Emit(ctx, nil, outbox.DomainEvent{EventType: enums.EventRequestCreated}))

	client := dbtest.Open(t)
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return svc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     "order_created",
			AggregateType: enums.AggregateReplenishmentRequest,
		})
	})
	assert.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	first := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventRequestCreated, AggregateType: enums.AggregateReplenishmentRequest, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old}
	second := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventRequestStatusChanged, AggregateType: enums.AggregateReplenishmentRequest, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old.Add(time.Minute)}
	exhausted := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventRequestStatusChanged, AggregateType: enums.AggregateReplenishmentRequest, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: old, AttemptCount: 10}

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		for _, row := range []models.OutboxEvent{second, first, exhausted} {
			if err := repo.Insert(tx, row); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, first.ID, rows[0].ID, "oldest first")
		require.NoError(t, repo.MarkPublishedTx(tx, first.ID))
		require.NoError(t, repo.MarkFailedTx(tx, second.ID, errors.New("broker down")))
		return nil
	}))

	var reloaded models.OutboxEvent
	require.NoError(t, client.DB().First(&reloaded, "id = ?", second.ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "broker down", *reloaded.LastError)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return repo.MarkTerminalTx(tx, second.ID, errors.New("gave up"), 10)
	}))
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 10)
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	}))

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestDeletePublishedBeforeRunsInBatches(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewRepository(client.DB())
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		for i := range 4 {
			row := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventRequestCreated, AggregateType: enums.AggregateReplenishmentRequest, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
			if err := repo.Insert(tx, row); err != nil {
				return err
			}
			if i == 3 {
				continue
			}
			if err := repo.MarkPublishedTx(tx, row.ID); err != nil {
				return err
			}
		}
		return nil
	}))

	deleted, err := repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Hour), 1)
	require.NoError(t, err)
	assert.EqualValues(t, 3, deleted)

	var remaining []models.OutboxEvent
	require.NoError(t, client.DB().Find(&remaining).Error)
	require.Len(t, remaining, 1)
	assert.Nil(t, remaining[0].PublishedAt, "unpublished rows survive retention")

	deleted, err = repo.DeletePublishedBefore(ctx, time.Now().UTC().Add(time.Hour), 1)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestDLQRepositoryTruncatesAndFinds(t *testing.T) {
	client := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()

	long := strings.Repeat("x", 5000)
	eventID := uuid.New()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return dlq.InsertTx(tx, models.OutboxDLQ{
			EventID:       eventID,
			EventType:     enums.EventRequestCreated,
			AggregateType: enums.AggregateReplenishmentRequest,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
			ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
			ErrorMessage:  &long,
		})
	}))

	found, err := dlq.FindByEventID(ctx, eventID)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.NotNil(t, found.ErrorMessage)
	assert.Len(t, *found.ErrorMessage, 1024)

	missing, err := dlq.FindByEventID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
