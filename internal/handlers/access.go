package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"chatlink-service/internal/repositories"
)

// AccessHandler answers whether the authenticated user may be let into a chat.
type AccessHandler struct {
	access repositories.AccessRepository
}

func NewAccessHandler(access repositories.AccessRepository) *AccessHandler {
	return &AccessHandler{access: access}
}

// CheckAccess is a point-in-time read of subscription state; nothing is
// cached, so a revoked subscription is reflected immediately.
func (h *AccessHandler) CheckAccess(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	chatID, err := strconv.ParseInt(c.Param("chat_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	allowed, err := h.access.HasAccess(c.Request.Context(), *userID, chatID)
	if err != nil {
		log.Printf("check access: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat_id": chatID, "allowed": allowed})
}
