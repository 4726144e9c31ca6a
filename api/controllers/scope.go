package controllers

import (
	"net/http"

	"github.com/angelmondragon/replenish-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/replenish-backend/pkg/errors"
	"github.com/angelmondragon/replenish-backend/pkg/scope"
)

func scopeFrom(r *http.Request) (scope.Client, error) {
	sc, ok := middleware.ScopeFromContext(r.Context())
	if !ok {
		return scope.Client{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "client scope missing")
	}
	return sc, nil
}
