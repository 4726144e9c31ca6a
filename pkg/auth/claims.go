package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/replenish-backend/pkg/enums"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID   uuid.UUID
	ClientID uuid.UUID
	Role     enums.ActorRole
	JTI      string
}

// AccessTokenClaims is the identity the core trusts on every request.
type AccessTokenClaims struct {
	UserID   uuid.UUID       `json:"user_id"`
	ClientID uuid.UUID       `json:"client_id"`
	Role     enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Scope turns verified claims into the tenant scope passed to services.
func (c *AccessTokenClaims) Scope() scope.Client {
	userID := c.UserID
	return scope.Client{ClientID: c.ClientID, UserID: &userID, Role: c.Role.String()}
}
