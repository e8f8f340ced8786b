package approval

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/meridian-cms/meridian/internal/platform/httpx"
	"github.com/meridian-cms/meridian/internal/shared"
)

// GuardVerdict is the policy outcome for a decision attempt.
type GuardVerdict struct {
	Allowed         bool
	Messages        []string
	MatchedPolicies []string
}

// DecisionGuard checks a decision attempt against platform policy before the
// workflow applies it. Self-approval prevention lives here as a block policy
// rather than a workflow precondition.
type DecisionGuard func(ctx context.Context, actor shared.Identity, req Request) (GuardVerdict, error)

// Handler exposes approval workflow endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	guard   DecisionGuard
}

// NewHandler builds Handler instance. The guard may be nil, in which case
// decisions skip the policy check.
func NewHandler(logger *slog.Logger, service *Service, guard DecisionGuard) *Handler {
	return &Handler{logger: logger, service: service, guard: guard}
}

// MountRoutes registers approval routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/{id}/decision", h.decide)
	r.Post("/{id}/cancel", h.cancel)
}

type decisionRequest struct {
	Decision Decision `json:"decision"`
	Role     string   `json:"role"`
	Note     string   `json:"note"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	requests, err := h.service.ListOpen(r.Context())
	if err != nil {
		h.logger.Error("list approvals", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if requests == nil {
		requests = []Request{}
	}
	httpx.JSON(w, http.StatusOK, requests)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, "get approval", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	var body decisionRequest
	if err := httpx.DecodeJSON(r, &body); err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	if body.Decision != DecisionApproved && body.Decision != DecisionRejected {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "decision: must be approved or rejected")
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	if h.guard != nil {
		current, err := h.service.Get(r.Context(), id)
		if err != nil {
			h.respondServiceError(w, "decide approval", err)
			return
		}
		verdict, err := h.guard(r.Context(), actor, current)
		if err != nil {
			h.logger.Error("decision guard", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		if !verdict.Allowed {
			httpx.Denied(w, verdict.Messages, verdict.MatchedPolicies)
			return
		}
	}
	req, err := h.service.Decide(r.Context(), id, actor.UserID, body.Role, body.Decision, body.Note)
	if err != nil {
		h.respondServiceError(w, "decide approval", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, httpx.ErrValidation)
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	req, err := h.service.Cancel(r.Context(), id, actor.UserID)
	if err != nil {
		h.respondServiceError(w, "cancel approval", err)
		return
	}
	httpx.JSON(w, http.StatusOK, req)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, ErrTerminalState), errors.Is(err, ErrInvalidTransition):
		httpx.Problem(w, http.StatusConflict, "Precondition Failed", err.Error())
	case errors.Is(err, ErrNotRequester):
		httpx.RespondError(w, httpx.ErrForbidden)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
