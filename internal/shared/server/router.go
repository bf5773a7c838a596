package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/compliance"
	"meddocs-backend/internal/documents"
	"meddocs-backend/internal/patients"
	"meddocs-backend/internal/review"
	"meddocs-backend/internal/shared/config"
	"meddocs-backend/internal/shared/metrics"
	"meddocs-backend/internal/shared/server/middleware"
	"meddocs-backend/internal/shared/server/respond"
	"meddocs-backend/internal/status"
)

// RouterDeps carries the handlers the router wires up.
type RouterDeps struct {
	Config            config.Config
	PatientsHandler   *patients.Handler
	DocumentsHandler  *documents.Handler
	ReviewHandler     *review.Handler
	ComplianceHandler *compliance.Handler
	StatusHandler     *status.Handler
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(deps.Config.Env),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules: map[string]middleware.RateLimitRule{
				"UPLOAD":  {Rate: 1, Burst: 5},
				"DEFAULT": {Rate: 10, Burst: 20},
			},
			GroupFor: func(c *gin.Context) string {
				if c.Request.Method == http.MethodPost && c.FullPath() == "/api/v1/patients/:id/documents" {
					return "UPLOAD"
				}
				return "DEFAULT"
			},
		}),
	)

	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})

	if deps.PatientsHandler != nil {
		deps.PatientsHandler.RegisterRoutes(api)
	}
	if deps.DocumentsHandler != nil {
		deps.DocumentsHandler.RegisterRoutes(api)
	}
	if deps.ReviewHandler != nil {
		deps.ReviewHandler.RegisterRoutes(api)
	}
	if deps.ComplianceHandler != nil {
		deps.ComplianceHandler.RegisterRoutes(api)
	}
	if deps.StatusHandler != nil {
		deps.StatusHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
