package rbac

import (
	"log/slog"
	"net/http"

	"github.com/meridian-cms/meridian/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. When Enabled
// is false every check passes, so the platform degrades to no-governance
// behaviour.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Enabled bool
}

// Require ensures the current identity holds the given action on resource.
func (m Middleware) Require(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.Enabled {
				next.ServeHTTP(w, r)
				return
			}
			id := shared.IdentityFromContext(r.Context())
			if !id.Authenticated() {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			ok, err := m.Service.HasPermission(r.Context(), id.Roles, action, resource, "", "")
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
