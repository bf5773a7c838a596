package review

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/documents"
	"meddocs-backend/internal/shared/server/middleware"
	"meddocs-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the review service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches review routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/documents/:id/metadata", h.proposeEdit)
}

type editRequest struct {
	ExpectedVersion int               `json:"expectedVersion"`
	Changes         map[string]string `json:"changes"`
}

type editResponse struct {
	DocumentID string           `json:"documentId"`
	Version    int              `json:"version"`
	Fields     documents.Fields `json:"fields"`
	AuthorID   string           `json:"authorId"`
	AuthorKind string           `json:"authorKind"`
	CreatedAt  time.Time        `json:"createdAt"`
}

func (h *Handler) proposeEdit(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	reviewerID := middleware.UploaderIDFromContext(c)

	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if len(req.Changes) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "changes is required", nil)
		return
	}

	edits := make([]Edit, 0, len(req.Changes))
	for name, value := range req.Changes {
		edits = append(edits, Edit{Field: name, Value: value})
	}

	version, err := h.Svc.ProposeEdit(c.Request.Context(), documentID, reviewerID, req.ExpectedVersion, edits)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document or version not found", nil)
		case errors.Is(err, documents.ErrRetired):
			respond.Error(c, http.StatusConflict, "retired", "document is retired", nil)
		case errors.Is(err, documents.ErrConflict):
			respond.Error(c, http.StatusConflict, "version_conflict", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to apply edit", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, editResponse{
		DocumentID: version.DocumentID,
		Version:    version.Version,
		Fields:     version.Fields,
		AuthorID:   version.AuthorID,
		AuthorKind: version.AuthorKind,
		CreatedAt:  version.CreatedAt,
	})
}
