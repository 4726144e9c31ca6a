// Package scope carries the tenant a call operates on. Every repository,
// service and aggregator call takes a Client explicitly.
package scope

import (
	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
)

// Client identifies the tenant and, when known, the acting user.
type Client struct {
	ClientID uuid.UUID
	UserID   *uuid.UUID
	Role     string
}

// ForClient builds a scope without actor details, for jobs and tests.
func ForClient(clientID uuid.UUID) Client {
	return Client{ClientID: clientID}
}

// Validate rejects an empty tenant.
func (c Client) Validate() error {
	if c.ClientID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "client scope required")
	}
	return nil
}

// Actor returns the acting user id, if any.
func (c Client) Actor() *uuid.UUID {
	if c.UserID == nil || *c.UserID == uuid.Nil {
		return nil
	}
	id := *c.UserID
	return &id
}
