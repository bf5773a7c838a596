package patients

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the patient registry.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches patient routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/patients", h.register)
	rg.GET("/patients", h.list)
	rg.GET("/patients/:id", h.get)
}

type registerRequest struct {
	FullName    string `json:"fullName"`
	ExternalRef string `json:"externalRef"`
}

type patientResponse struct {
	ID          string    `json:"id"`
	FullName    string    `json:"fullName"`
	ExternalRef string    `json:"externalRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	p, err := h.Svc.Register(c.Request.Context(), req.FullName, req.ExternalRef)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register patient", nil)
		}
		return
	}

	respond.JSON(c, http.StatusCreated, toResponse(p))
}

func (h *Handler) get(c *gin.Context) {
	patientID := c.Param("id")
	if patientID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "patient id is required", nil)
		return
	}

	p, err := h.Svc.Get(c.Request.Context(), patientID)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "patient not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch patient", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(p))
}

func (h *Handler) list(c *gin.Context) {
	all, err := h.Svc.List(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list patients", nil)
		return
	}
	out := make([]patientResponse, 0, len(all))
	for _, p := range all {
		out = append(out, toResponse(p))
	}
	respond.JSON(c, http.StatusOK, gin.H{"patients": out})
}

func toResponse(p Patient) patientResponse {
	return patientResponse{
		ID:          p.ID,
		FullName:    p.FullName,
		ExternalRef: p.ExternalRef,
		CreatedAt:   p.CreatedAt,
	}
}
