package status

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/documents"
	"meddocs-backend/internal/shared/server/middleware"
	"meddocs-backend/internal/shared/server/respond"
)

const sseHeartbeat = 25 * time.Second

// Handler wires HTTP handlers to the status service and hub.
type Handler struct {
	Svc   *Service
	Hub   *Hub
	polls *pollLimiter
}

// NewHandler constructs a Handler. pollWindow is the minimum spacing
// between status polls per caller+document.
func NewHandler(svc *Service, hub *Hub, pollWindow time.Duration) *Handler {
	return &Handler{
		Svc:   svc,
		Hub:   hub,
		polls: newPollLimiter(pollWindow, nil),
	}
}

// RegisterRoutes attaches status routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/documents/:id/status", h.getStatus)
	rg.GET("/documents/:id/events", h.streamEvents)
}

func (h *Handler) getStatus(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	callerID := middleware.UploaderIDFromContext(c)
	if !h.polls.Allow(callerID, documentID) {
		c.Header("Retry-After", strconv.Itoa(h.polls.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "poll_too_fast", "status polled too frequently; slow down", nil)
		return
	}

	snap, err := h.Svc.Snapshot(c.Request.Context(), documentID)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch status", nil)
		}
		return
	}
	respond.JSON(c, http.StatusOK, snap)
}

// streamEvents pushes snapshots over SSE: one on connect, then one per
// change signal, with heartbeats to keep intermediaries from closing the
// stream.
func (h *Handler) streamEvents(c *gin.Context) {
	documentID := c.Param("id")
	if documentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "document id is required", nil)
		return
	}

	snap, err := h.Svc.Snapshot(c.Request.Context(), documentID)
	if err != nil {
		switch {
		case errors.Is(err, documents.ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open event stream", nil)
		}
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	updates, cancel := h.Hub.Watch(documentID)
	defer cancel()

	writeEvent(c.Writer, snap)
	c.Writer.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": ping\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case <-updates:
			snap, err := h.Svc.Snapshot(ctx, documentID)
			if err != nil {
				return
			}
			writeEvent(c.Writer, snap)
			c.Writer.Flush()
		}
	}
}

func writeEvent(w io.Writer, snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return
	}
	io.WriteString(w, "event: status\ndata: ")
	w.Write(payload)
	io.WriteString(w, "\n\n")
}

var _ documents.Notifier = (*Hub)(nil)
