package governance

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridian-cms/meridian/internal/platform/httpx"
	"github.com/meridian-cms/meridian/internal/shared"
)

// Handler exposes the enforcement pipeline to the rest of the platform.
type Handler struct {
	logger   *slog.Logger
	gate     *Gate
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, gate *Gate) *Handler {
	return &Handler{logger: logger, gate: gate, validate: validator.New()}
}

// MountRoutes registers governance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
}

type checkRequest struct {
	Action     string         `json:"action" validate:"required"`
	Resource   string         `json:"resource" validate:"required"`
	ResourceID string         `json:"resourceId"`
	ScopeKind  string         `json:"scopeKind"`
	ScopeValue string         `json:"scopeValue"`
	Metadata   map[string]any `json:"metadata"`
}

// check evaluates one governed attempt on behalf of a platform service. The
// caller identity comes from the gateway headers, same as every other route.
func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if !identity.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	decision, err := h.gate.Check(r.Context(), Request{
		UserID:     identity.UserID,
		UserRoles:  identity.Roles,
		Action:     req.Action,
		Resource:   req.Resource,
		ResourceID: req.ResourceID,
		ScopeKind:  req.ScopeKind,
		ScopeValue: req.ScopeValue,
		Metadata:   req.Metadata,
	})
	if err != nil {
		h.logger.Error("governance check", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.SetWarnings(w, decision.Warnings)
	httpx.JSON(w, http.StatusOK, decision)
}
