package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chatlink-service/internal/telemetry"
)

// RegisterDebugRoutes mounts helper endpoints used in non-production
// environments to verify the telemetry pipeline end to end.
func RegisterDebugRoutes(router gin.IRouter, audit *telemetry.AuditEmitter) {
	router.POST("/debug/audit-test", func(c *gin.Context) {
		var body struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil || body.Text == "" {
			body.Text = "audit test event"
		}
		emitAudit(c, audit, "info", body.Text)
		c.JSON(http.StatusOK, gin.H{"status": "sent"})
	})
}
