package compliance

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/shared/server/respond"
)

// Handler serves stored compliance verdicts.
type Handler struct {
	Repo Repo
}

// NewHandler constructs a Handler.
func NewHandler(repo Repo) *Handler {
	return &Handler{Repo: repo}
}

// RegisterRoutes attaches compliance routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/compliance", h.get)
}

func (h *Handler) get(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	var (
		result Result
		err    error
	)
	if raw := c.Query("version"); raw != "" {
		version, parseErr := strconv.Atoi(raw)
		if parseErr != nil || version < 1 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "version must be a positive integer", nil)
			return
		}
		result, err = h.Repo.Get(c.Request.Context(), documentID, version)
	} else {
		result, err = h.Repo.Latest(c.Request.Context(), documentID)
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "no compliance result for document", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch compliance result", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, result)
}
