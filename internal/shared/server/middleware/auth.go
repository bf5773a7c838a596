package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"meddocs-backend/internal/shared/server/respond"
)

const uploaderIDKey = "uploaderId"

// Auth resolves the caller identity placed on the request by the upstream
// authentication gateway. Requests without an identity are rejected; the
// token itself is validated before it reaches this service.
func Auth(env string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Status(http.StatusNoContent)
			return
		}

		if c.Request.URL.Path == "/api/v1/health" || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		uploaderID := strings.TrimSpace(c.GetHeader("X-Uploader-Id"))
		if uploaderID == "" {
			authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(authHeader, "Bearer ") {
				uploaderID = gatewaySubject(strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer ")))
			}
		}

		if uploaderID == "" {
			respond.Error(c, http.StatusUnauthorized, "unauthorized", "Missing identity", nil)
			return
		}

		c.Set(uploaderIDKey, uploaderID)
		c.Next()
	}
}

// UploaderIDFromContext fetches the uploader ID set by the auth middleware.
func UploaderIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(uploaderIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// gatewaySubject extracts the subject the gateway encodes as "sub:<id>" in
// its opaque pass-through tokens.
func gatewaySubject(token string) string {
	if strings.HasPrefix(token, "sub:") {
		return strings.TrimPrefix(token, "sub:")
	}
	return token
}
