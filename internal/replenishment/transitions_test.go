package replenishment

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
)

func TestValidateTransitionTable(t *testing.T) {
	const (
		rq = enums.ReplenishmentStatusRequested
		pr = enums.ReplenishmentStatusProcessing
		it = enums.ReplenishmentStatusInTransit
		rc = enums.ReplenishmentStatusReceived
		cn = enums.ReplenishmentStatusCancelled
	)
	allowed := map[[2]enums.ReplenishmentStatus]bool{
		{rq, pr}: true,
		{rq, cn}: true,
		{pr, it}: true,
		{pr, cn}: true,
		{it, rc}: true,
	}

	statuses := enums.ReplenishmentStatuses()
	checked := 0
	for _, from := range statuses {
		for _, to := range statuses {
			checked++
			err := ValidateTransition(from, to)
			if allowed[[2]enums.ReplenishmentStatus{from, to}] {
				assert.NoError(t, err, "%s -> %s", from, to)
				continue
			}
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition), "%s -> %s", from, to)
		}
	}
	assert.Equal(t, 25, checked)
}

func TestValidateTransitionRejectsUnknown(t *testing.T) {
	err := ValidateTransition("shipped", enums.ReplenishmentStatusReceived)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
	err = ValidateTransition(enums.ReplenishmentStatusRequested, "")
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))
}

func TestAllowedNextTerminalIsEmpty(t *testing.T) {
	assert.Empty(t, AllowedNext(enums.ReplenishmentStatusReceived))
	assert.Empty(t, AllowedNext(enums.ReplenishmentStatusCancelled))
	assert.Equal(t, []enums.ReplenishmentStatus{enums.ReplenishmentStatusReceived}, AllowedNext(enums.ReplenishmentStatusInTransit))
}
