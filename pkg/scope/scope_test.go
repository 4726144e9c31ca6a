package scope

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
)

func TestValidateRequiresClient(t *testing.T) {
	err := Client{}.Validate()
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.NoError(t, ForClient(uuid.New()).Validate())
}

func TestActorCopiesUserID(t *testing.T) {
	assert.Nil(t, ForClient(uuid.New()).Actor())

	nilID := uuid.Nil
	assert.Nil(t, Client{ClientID: uuid.New(), UserID: &nilID}.Actor())

	user := uuid.New()
	sc := Client{ClientID: uuid.New(), UserID: &user}
	got := sc.Actor()
	require.NotNil(t, got)
	assert.Equal(t, user, *got)
	assert.NotSame(t, &user, got)
}
