package middleware

import (
	"net/http"

	"github.com/menusam/partner-billing/api/responses"
	"github.com/menusam/partner-billing/pkg/enums"
	pkgerrors "github.com/menusam/partner-billing/pkg/errors"
	"github.com/menusam/partner-billing/pkg/logger"
)

// RequireRole lets through only callers holding role. Partners must also
// carry an establishment since every partner route is scoped to one.
func RequireRole(role enums.ActorRole, logg *logger.Logger) func(http.Handler) http.Handler {
	return guard(logg, func(c Caller) error {
		if c.Role != role {
			return pkgerrors.New(pkgerrors.CodeForbidden, string(role)+" role required")
		}
		if role == enums.ActorRolePartner {
			if _, ok := c.Establishment(); !ok {
				return pkgerrors.New(pkgerrors.CodeForbidden, "establishment context missing")
			}
		}
		return nil
	})
}

func guard(logg *logger.Logger, check func(Caller) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, errMissingCredentials)
				return
			}
			if err := check(caller); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
