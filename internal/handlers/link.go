package handlers

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chatlink-service/internal/models"
	"chatlink-service/internal/observability"
	"chatlink-service/internal/repositories"
	"chatlink-service/internal/telemetry"
)

// LinkHandler serves the project-facing linking API: issuing link intents,
// listing connected channels and cancelling pending intents.
type LinkHandler struct {
	intents     repositories.IntentRepository
	chats       repositories.ChatRepository
	projects    repositories.ProjectRepository
	audit       *telemetry.AuditEmitter
	botUsername string
	defaultTTL  time.Duration
	maxTTL      time.Duration
}

func NewLinkHandler(
	intents repositories.IntentRepository,
	chats repositories.ChatRepository,
	projects repositories.ProjectRepository,
	audit *telemetry.AuditEmitter,
	botUsername string,
	defaultTTL, maxTTL time.Duration,
) *LinkHandler {
	return &LinkHandler{
		intents:     intents,
		chats:       chats,
		projects:    projects,
		audit:       audit,
		botUsername: botUsername,
		defaultTTL:  defaultTTL,
		maxTTL:      maxTTL,
	}
}

type createIntentRequest struct {
	TTLMinutes *int `json:"ttl_minutes"`
	// TelegramUserID pre-binds the intent to a known Telegram identity so the
	// /start step can be skipped.
	TelegramUserID *int64 `json:"telegram_user_id"`
}

// CreateLinkIntent issues (or idempotently reuses) a pending link intent for
// the project and hands back the token plus a ready-made deep link.
func (h *LinkHandler) CreateLinkIntent(c *gin.Context) {
	tracer := otel.Tracer("chatlink-service")
	ctx, span := tracer.Start(c.Request.Context(), "link.create_intent")
	defer span.End()

	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projectID := c.Param("project_id")
	if _, err := uuid.Parse(projectID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}
	span.SetAttributes(attribute.String("project.id", projectID))

	allowed, err := h.projects.HasManageRights(ctx, projectID, *userID)
	if err != nil {
		log.Printf("create intent: manage rights: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "no manage rights on project"})
		return
	}

	// The body is optional; an empty one means the default TTL.
	var body createIntentRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ttl := h.defaultTTL
	if body.TTLMinutes != nil {
		if *body.TTLMinutes <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ttl_minutes must be positive"})
			return
		}
		ttl = time.Duration(*body.TTLMinutes) * time.Minute
		if ttl > h.maxTTL {
			ttl = h.maxTTL
		}
	}

	intent, err := h.intents.CreateOrReuse(ctx, projectID, *userID, ttl, body.TelegramUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrTokenExhausted) {
			observability.IncTokenExhausted()
			emitAudit(c, h.audit, "error", "link token generation exhausted")
			log.Printf("create intent: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue link token"})
			return
		}
		log.Printf("create intent: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	observability.IncIntentIssued()
	emitAudit(c, h.audit, "info", fmt.Sprintf("link intent issued for project %s", projectID))

	c.JSON(http.StatusCreated, gin.H{
		"token":      intent.Token,
		"expires_at": intent.ExpiresAt,
		"start_link": h.startLink(intent.Token),
	})
}

func (h *LinkHandler) startLink(tok string) string {
	if h.botUsername == "" {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", h.botUsername, tok)
}

// ListProjectChannels returns the Telegram chats bound to a project.
func (h *LinkHandler) ListProjectChannels(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	projectID := c.Param("project_id")
	if _, err := uuid.Parse(projectID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid project id"})
		return
	}

	allowed, err := h.projects.HasManageRights(c.Request.Context(), projectID, *userID)
	if err != nil {
		log.Printf("list channels: manage rights: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !allowed {
		c.JSON(http.StatusForbidden, gin.H{"error": "no manage rights on project"})
		return
	}

	channels, err := h.chats.ListByProject(c.Request.Context(), projectID)
	if err != nil {
		log.Printf("list channels: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if channels == nil {
		channels = []models.TelegramChat{}
	}

	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// CancelLinkIntent withdraws the caller's own pending intent.
func (h *LinkHandler) CancelLinkIntent(c *gin.Context) {
	userID := userIDFromContext(c)
	if userID == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tok := c.Param("token")
	if err := h.intents.Cancel(c.Request.Context(), tok, *userID); err != nil {
		if errors.Is(err, repositories.ErrIntentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "link intent not found"})
			return
		}
		log.Printf("cancel intent: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	emitAudit(c, h.audit, "info", "link intent cancelled")
	c.Status(http.StatusNoContent)
}
