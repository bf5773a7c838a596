package documents

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/shared/server/middleware"
	"meddocs-backend/internal/shared/server/respond"
)

const maxUploadSize = 25 << 20 // 25MB

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/patients/:id/documents", h.upload)
	rg.GET("/patients/:id/documents", h.listByPatient)
	rg.GET("/documents/:id", h.get)
	rg.GET("/documents/:id/metadata", h.metadata)
	rg.GET("/documents/:id/metadata/history", h.history)
	rg.POST("/documents/:id/retry", h.retry)
	rg.POST("/documents/:id/reprocess", h.reprocess)
	rg.DELETE("/documents/:id", h.retire)
}

func (h *Handler) upload(c *gin.Context) {
	uploaderID := middleware.UploaderIDFromContext(c)
	patientID := c.Param("id")
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	notes := c.PostForm("notes")

	doc, err := h.Svc.Upload(c.Request.Context(), patientID, uploaderID, fileHeader.Filename, notes, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to upload document", nil)
		}
		return
	}

	respond.JSON(c, http.StatusAccepted, toResponse(doc))
}

func (h *Handler) get(c *gin.Context) {
	doc, ok := h.lookup(c)
	if !ok {
		return
	}
	respond.JSON(c, http.StatusOK, toResponse(doc))
}

func (h *Handler) listByPatient(c *gin.Context) {
	patientID := c.Param("id")
	if patientID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "patient id is required", nil)
		return
	}

	docs, err := h.Svc.ListByPatient(c.Request.Context(), patientID)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list documents", nil)
		return
	}

	resp := make([]docResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.JSON(c, http.StatusOK, gin.H{"documents": resp})
}

func (h *Handler) metadata(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	version := 0
	if raw := c.Query("version"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respond.Error(c, http.StatusBadRequest, "validation_error", "version must be a positive integer", nil)
			return
		}
		version = parsed
	}

	mv, err := h.Svc.Metadata(c.Request.Context(), documentID, version)
	if err != nil {
		h.respondError(c, err, "failed to fetch metadata")
		return
	}
	respond.JSON(c, http.StatusOK, toVersionResponse(mv))
}

func (h *Handler) history(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	versions, err := h.Svc.History(c.Request.Context(), documentID)
	if err != nil {
		h.respondError(c, err, "failed to fetch history")
		return
	}

	resp := make([]versionResponse, 0, len(versions))
	for _, mv := range versions {
		resp = append(resp, toVersionResponse(mv))
	}
	respond.JSON(c, http.StatusOK, gin.H{"versions": resp})
}

func (h *Handler) retry(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	doc, err := h.Svc.Retry(c.Request.Context(), documentID)
	if err != nil {
		h.respondError(c, err, "failed to retry extraction")
		return
	}
	respond.JSON(c, http.StatusAccepted, toResponse(doc))
}

func (h *Handler) reprocess(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	doc, err := h.Svc.Reprocess(c.Request.Context(), documentID)
	if err != nil {
		h.respondError(c, err, "failed to reprocess document")
		return
	}
	respond.JSON(c, http.StatusAccepted, toResponse(doc))
}

func (h *Handler) retire(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	if err := h.Svc.Retire(c.Request.Context(), documentID); err != nil {
		h.respondError(c, err, "failed to retire document")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) lookup(c *gin.Context) (Document, bool) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return Document{}, false
	}

	doc, err := h.Svc.Get(c.Request.Context(), documentID)
	if err != nil {
		h.respondError(c, err, "failed to fetch document")
		return Document{}, false
	}
	return doc, true
}

func (h *Handler) respondError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrValidation):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrRetired):
		respond.Error(c, http.StatusConflict, "retired", "document is retired", nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}

type docResponse struct {
	ID             string    `json:"id"`
	PatientID      string    `json:"patientId"`
	FileName       string    `json:"fileName"`
	MimeType       string    `json:"mimeType,omitempty"`
	SizeBytes      int64     `json:"sizeBytes"`
	DocumentType   string    `json:"documentType,omitempty"`
	State          string    `json:"state"`
	CurrentVersion int       `json:"currentVersion"`
	FailureReason  string    `json:"failureReason,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toResponse(doc Document) docResponse {
	return docResponse{
		ID:             doc.ID,
		PatientID:      doc.PatientID,
		FileName:       doc.FileName,
		MimeType:       doc.MimeType,
		SizeBytes:      doc.SizeBytes,
		DocumentType:   doc.DocumentType,
		State:          string(doc.State),
		CurrentVersion: doc.CurrentVersion,
		FailureReason:  doc.FailureReason,
		Notes:          doc.Notes,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

type versionResponse struct {
	DocumentID string    `json:"documentId"`
	Version    int       `json:"version"`
	Fields     Fields    `json:"fields"`
	AuthorID   string    `json:"authorId"`
	AuthorKind string    `json:"authorKind"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toVersionResponse(mv MetadataVersion) versionResponse {
	return versionResponse{
		DocumentID: mv.DocumentID,
		Version:    mv.Version,
		Fields:     mv.Fields,
		AuthorID:   mv.AuthorID,
		AuthorKind: mv.AuthorKind,
		CreatedAt:  mv.CreatedAt,
	}
}
