package enums

import (
	"fmt"
	"strings"
)

// ReplenishmentStatus tracks a shop's stock request from submission to receipt.
type ReplenishmentStatus string

const (
	ReplenishmentStatusRequested  ReplenishmentStatus = "requested"
	ReplenishmentStatusProcessing ReplenishmentStatus = "processing"
	ReplenishmentStatusInTransit  ReplenishmentStatus = "in_transit"
	ReplenishmentStatusReceived   ReplenishmentStatus = "received"
	ReplenishmentStatusCancelled  ReplenishmentStatus = "cancelled"
)

var validReplenishmentStatuses = []ReplenishmentStatus{
	ReplenishmentStatusRequested,
	ReplenishmentStatusProcessing,
	ReplenishmentStatusInTransit,
	ReplenishmentStatusReceived,
	ReplenishmentStatusCancelled,
}

// ReplenishmentStatuses returns every status in lifecycle order.
func ReplenishmentStatuses() []ReplenishmentStatus {
	out := make([]ReplenishmentStatus, len(validReplenishmentStatuses))
	copy(out, validReplenishmentStatuses)
	return out
}

// String implements fmt.Stringer.
func (s ReplenishmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ReplenishmentStatus.
func (s ReplenishmentStatus) IsValid() bool {
	for _, candidate := range validReplenishmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s ReplenishmentStatus) IsTerminal() bool {
	return s == ReplenishmentStatusReceived || s == ReplenishmentStatusCancelled
}

// IsActive is the complement of IsTerminal for known statuses.
func (s ReplenishmentStatus) IsActive() bool {
	return s.IsValid() && !s.IsTerminal()
}

// ActiveReplenishmentStatuses lists the non-terminal statuses.
func ActiveReplenishmentStatuses() []ReplenishmentStatus {
	return []ReplenishmentStatus{
		ReplenishmentStatusRequested,
		ReplenishmentStatusProcessing,
		ReplenishmentStatusInTransit,
	}
}

// ParseReplenishmentStatus converts raw input into a ReplenishmentStatus.
func ParseReplenishmentStatus(value string) (ReplenishmentStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for _, candidate := range validReplenishmentStatuses {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid replenishment status %q", value)
}
