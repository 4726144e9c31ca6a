package replenishment

import (
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
)

// allowedTransitions is the full state machine; terminal statuses have no entry.
var allowedTransitions = map[enums.ReplenishmentStatus][]enums.ReplenishmentStatus{
	enums.ReplenishmentStatusRequested: {
		enums.ReplenishmentStatusProcessing,
		enums.ReplenishmentStatusCancelled,
	},
	enums.ReplenishmentStatusProcessing: {
		enums.ReplenishmentStatusInTransit,
		enums.ReplenishmentStatusCancelled,
	},
	enums.ReplenishmentStatusInTransit: {
		enums.ReplenishmentStatusReceived,
	},
}

// ValidateTransition returns nil when current may move to next.
func ValidateTransition(current, next enums.ReplenishmentStatus) error {
	if !current.IsValid() || !next.IsValid() {
		return invalidTransition(current, next, "unknown status")
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return nil
		}
	}
	return invalidTransition(current, next, "")
}

// AllowedNext lists the statuses reachable from current in one step.
func AllowedNext(current enums.ReplenishmentStatus) []enums.ReplenishmentStatus {
	next := allowedTransitions[current]
	out := make([]enums.ReplenishmentStatus, len(next))
	copy(out, next)
	return out
}

func invalidTransition(current, next enums.ReplenishmentStatus, reason string) error {
	details := map[string]any{"from": current, "to": next}
	if reason != "" {
		details["reason"] = reason
	}
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, "cannot move request from "+string(current)+" to "+string(next)).
		WithDetails(details)
}
