package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chatlink-service/internal/telemetry"
)

func requestIDFromContext(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-Id")
	if requestID == "" {
		requestID = newRequestID()
	}
	return requestID
}

func newRequestID() string {
	return uuid.NewString()
}

func userIDFromContext(c *gin.Context) *int64 {
	value, ok := c.Get("userID")
	if !ok {
		return nil
	}
	userID, ok := value.(int64)
	if !ok {
		return nil
	}
	return &userID
}

func emitAudit(c *gin.Context, audit *telemetry.AuditEmitter, level, text string) {
	if audit == nil {
		return
	}
	audit.Emit(c.Request.Context(), level, text, requestIDFromContext(c), userIDFromContext(c))
}
