package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/pkg/db/dbtest"
	"github.com/angelmondragon/replenish-backend/pkg/db/models"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	"github.com/angelmondragon/replenish-backend/pkg/outbox"
)

func deadEvent() models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventRequestCreated,
		AggregateType: enums.AggregateReplenishmentRequest,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  4,
	}
}

func TestDeadLetterCopiesEventAndTruncates(t *testing.T) {
	event := deadEvent()
	long := strings.Repeat("é", 600)
	entry := outbox.DeadLetter(event, enums.OutboxDLQReasonMaxAttempts, errors.New(long), time.Now())

	assert.Equal(t, event.ID, entry.EventID)
	assert.Equal(t, 4, entry.AttemptCount)
	require.NotNil(t, entry.ErrorMessage)
	assert.LessOrEqual(t, len(*entry.ErrorMessage), 1024)
	assert.True(t, utf8.ValidString(*entry.ErrorMessage))

	assert.Nil(t, outbox.DeadLetter(event, enums.OutboxDLQReasonNonRetryable, nil, time.Now()).ErrorMessage)
}

func TestDLQRepositoryInsertIsIdempotentPerEvent(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	ctx := context.Background()
	event := deadEvent()

	for i := 0; i < 2; i++ {
		err := client.DB().Transaction(func(tx *gorm.DB) error {
			return repo.InsertTx(tx, outbox.DeadLetter(event, enums.OutboxDLQReasonMaxAttempts, errors.New("broker down"), time.Now()))
		})
		require.NoError(t, err)
	}

	found, err := repo.FindByEventID(ctx, event.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, found.ErrorReason)

	missing, err := repo.FindByEventID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, client.DB().Transaction(func(tx *gorm.DB) error {
		return repo.InsertTx(tx, outbox.DeadLetter(deadEvent(), enums.OutboxDLQReasonNonRetryable, nil, time.Now()))
	}))
	counts, err := repo.CountByReason(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[enums.OutboxDLQReasonMaxAttempts])
	assert.EqualValues(t, 1, counts[enums.OutboxDLQReasonNonRetryable])
}

func TestDLQRepositoryRejectsUnknownReason(t *testing.T) {
	client := dbtest.Open(t)
	repo := outbox.NewDLQRepository(client.DB())
	err := client.DB().Transaction(func(tx *gorm.DB) error {
		return repo.InsertTx(tx, outbox.DeadLetter(deadEvent(), enums.OutboxDLQErrorReason("bogus"), nil, time.Now()))
	})
	assert.Error(t, err)
	assert.Error(t, repo.InsertTx(nil, models.OutboxDLQ{}))
}
