package middleware

import (
	"net/http"

	"github.com/angelmondragon/replenish-backend/api/responses"
	"github.com/angelmondragon/replenish-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/logger"
)

// RequireInventoryRole limits stock mutations to DC roles.
func RequireInventoryRole(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enums.ActorRole(RoleFromContext(r.Context())).ManagesInventory() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "dc role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
