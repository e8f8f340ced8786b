package governance

import (
	"log/slog"
	"net/http"

	"github.com/meridian-cms/meridian/internal/platform/httpx"
	"github.com/meridian-cms/meridian/internal/shared"
)

// Middleware enforces the gate in front of governed HTTP mutations.
type Middleware struct {
	Gate   *Gate
	Logger *slog.Logger
}

// Enforce runs the full pipeline for the given action/resource pair. Blocked
// requests get the denial body with matched policy names; warnings ride along
// on the response header without failing the request.
func (m *Middleware) Enforce(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if !identity.Authenticated() {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			decision, err := m.Gate.Check(r.Context(), Request{
				UserID:     identity.UserID,
				UserRoles:  identity.Roles,
				Action:     action,
				Resource:   resource,
				ResourceID: r.URL.Query().Get("id"),
			})
			if err != nil {
				m.Logger.Error("governance check", slog.String("action", action), slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			httpx.SetWarnings(w, decision.Warnings)
			if !decision.Allowed {
				httpx.Denied(w, decision.Messages, decision.MatchedPolicies)
				return
			}
			if decision.PendingApproval {
				body := map[string]any{
					"pendingApproval": true,
				}
				if decision.ApprovalRequestID != nil {
					body["approvalRequestId"] = decision.ApprovalRequestID
				}
				httpx.JSON(w, http.StatusAccepted, body)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
