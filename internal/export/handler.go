package export

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/meridian-cms/meridian/internal/platform/httpx"
	"github.com/meridian-cms/meridian/internal/shared"
)

// Handler exposes the export API.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers export routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/download", h.download)
}

type createRequest struct {
	ResourceType string         `json:"resourceType" validate:"required"`
	Format       string         `json:"format" validate:"required,oneof=csv json xml xlsx"`
	Filters      map[string]any `json:"filters"`
}

type createResponse struct {
	Success           bool       `json:"success"`
	ExportID          uuid.UUID  `json:"exportId"`
	RequiresApproval  bool       `json:"requiresApproval"`
	ApprovalRequestID *uuid.UUID `json:"approvalRequestId,omitempty"`
	DownloadURL       string     `json:"downloadUrl,omitempty"`
	RecordCount       int        `json:"recordCount"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if !identity.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	job, err := h.service.Create(r.Context(), CreateParams{
		Requester:    identity.UserID,
		ResourceType: req.ResourceType,
		Format:       Format(req.Format),
		Filters:      req.Filters,
	})
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	resp := createResponse{
		Success:           true,
		ExportID:          job.ID,
		RequiresApproval:  job.RequiresApproval,
		ApprovalRequestID: job.ApprovalRequestID,
		RecordCount:       job.RecordCount,
	}
	if !job.RequiresApproval {
		resp.DownloadURL = fmt.Sprintf("/api/exports/%s/download", job.ID)
	}
	httpx.JSON(w, http.StatusAccepted, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if !identity.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	jobs, err := h.service.ListMine(r.Context(), identity.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []Job{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"rows": jobs})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "export id must be a UUID")
		return
	}
	job, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, job)
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	identity := shared.IdentityFromContext(r.Context())
	if !identity.Authenticated() {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "export id must be a UUID")
		return
	}
	job, artifact, err := h.service.Download(r.Context(), id, identity.UserID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", job.Format.ContentType())
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%s.%s"`, job.ResourceType, job.ID, job.Format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact)
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.RespondError(w, httpx.ErrNotFound)
	case errors.Is(err, shared.ErrRateLimited):
		httpx.RespondError(w, httpx.ErrTooMany)
	case errors.Is(err, ErrLinkExpired):
		httpx.Problem(w, http.StatusGone, "Link Expired", "the download link for this export has expired")
	case errors.Is(err, ErrAwaitingApproval), errors.Is(err, ErrNotReady):
		httpx.Problem(w, http.StatusConflict, "Not Ready", err.Error())
	case errors.Is(err, ErrUnknownFormat):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		h.logger.Error("export handler", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
