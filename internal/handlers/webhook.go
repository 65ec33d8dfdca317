package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"chatlink-service/internal/bridge"
	"chatlink-service/internal/linking"
	"chatlink-service/internal/models"
	"chatlink-service/internal/observability"
	"chatlink-service/internal/repositories"
	"chatlink-service/internal/telegram"
	"chatlink-service/internal/telemetry"
)

// WebhookHandler processes Telegram bot updates: /start deep links,
// chat_shared picks and my_chat_member transitions.
type WebhookHandler struct {
	secret  string
	intents repositories.IntentRepository
	chats   repositories.ChatRepository
	tg      telegram.Client
	bridge  bridge.Bridge
	audit   *telemetry.AuditEmitter
}

func NewWebhookHandler(
	secret string,
	intents repositories.IntentRepository,
	chats repositories.ChatRepository,
	tg telegram.Client,
	br bridge.Bridge,
	audit *telemetry.AuditEmitter,
) *WebhookHandler {
	return &WebhookHandler{
		secret:  secret,
		intents: intents,
		chats:   chats,
		tg:      tg,
		bridge:  br,
		audit:   audit,
	}
}

// Handle ingests one update. Telegram retries non-2xx responses, so every
// recognized request is acknowledged with 200 no matter how processing went;
// only a bad secret is rejected.
func (h *WebhookHandler) Handle(c *gin.Context) {
	if !h.secretMatches(c) {
		observability.IncWebhookEvent("forbidden")
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}

	tracer := otel.Tracer("chatlink-service")
	ctx, span := tracer.Start(c.Request.Context(), "telegram.webhook")
	defer span.End()
	ctx = context.WithValue(ctx, requestIDKey{}, requestIDFromContext(c))

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		// Malformed bodies are acked so Telegram does not redeliver them.
		observability.IncWebhookEvent("malformed")
		log.Printf("webhook: malformed update: %v", err)
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	span.SetAttributes(attribute.Int64("telegram.update_id", update.UpdateId))

	switch {
	case update.MyChatMember != nil:
		h.handleMyChatMember(ctx, update.MyChatMember)
	case update.Message != nil:
		h.handleMessage(ctx, update.Message)
	default:
		observability.IncWebhookEvent("ignored")
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *WebhookHandler) secretMatches(c *gin.Context) bool {
	if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(h.secret)) != 1 {
		return false
	}
	// Telegram optionally echoes the configured secret in a header; when it
	// does, it must agree with the path.
	header := c.GetHeader("X-Telegram-Bot-Api-Secret-Token")
	if header != "" && subtle.ConstantTimeCompare([]byte(header), []byte(h.secret)) != 1 {
		return false
	}
	return true
}

func (h *WebhookHandler) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		observability.IncWebhookEvent("ignored")
		return
	}

	if msg.ChatShared != nil {
		h.handleChatShared(ctx, msg)
		return
	}

	if tok, ok := startToken(msg.Text); ok {
		if err := h.intents.AttachTelegramUser(ctx, tok, msg.From.Id); err != nil {
			log.Printf("webhook: attach telegram user: %v", err)
			return
		}
		observability.IncWebhookEvent("start_command")
		return
	}

	observability.IncWebhookEvent("ignored")
}

// startToken extracts the deep-link payload from a "/start <token>" command.
func startToken(text string) (string, bool) {
	rest, found := strings.CutPrefix(text, "/start ")
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return "", false
	}
	return rest, true
}

// handleChatShared records which chat the user picked for an intent. The
// intent stays pending: consumption waits for the bot to actually become a
// working admin in the chat.
func (h *WebhookHandler) handleChatShared(ctx context.Context, msg *tgbotapi.Message) {
	requestID := msg.ChatShared.RequestId
	chatID := msg.ChatShared.ChatId

	intent, err := h.matchSharedIntent(ctx, requestID, msg.From.Id)
	if err != nil {
		if errors.Is(err, repositories.ErrIntentNotFound) {
			observability.IncWebhookEvent("chat_shared_unmatched")
			log.Printf("webhook: chat_shared without matching intent: request_id=%d sender=%d", requestID, msg.From.Id)
			return
		}
		log.Printf("webhook: match shared intent: %v", err)
		return
	}

	if _, err := h.chats.UpsertShared(ctx, chatID, intent.ProjectID, msg.From.Id); err != nil {
		log.Printf("webhook: upsert shared chat: %v", err)
		return
	}
	if err := h.intents.RecordShare(ctx, intent.ID, requestID, chatID); err != nil {
		log.Printf("webhook: record share: %v", err)
		return
	}
	observability.IncWebhookEvent("chat_shared")
}

// matchSharedIntent resolves a chat_shared event to an intent, trying the
// share request id first and the sender's Telegram identity second.
func (h *WebhookHandler) matchSharedIntent(ctx context.Context, requestID, senderID int64) (models.LinkIntent, error) {
	if requestID != 0 {
		intent, err := h.intents.FindActiveByRequest(ctx, requestID)
		if err == nil {
			return intent, nil
		}
		if !errors.Is(err, repositories.ErrIntentNotFound) {
			return models.LinkIntent{}, err
		}
	}
	return h.intents.FindActiveByTelegramUser(ctx, senderID)
}

func (h *WebhookHandler) handleMyChatMember(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	merged := upd.NewChatMember.MergeChatMember()

	// Only the bot's own membership drives chat state; a promotion of some
	// other member in the chat is noise.
	if !merged.User.IsBot {
		observability.IncWebhookEvent("membership_other_user")
		return
	}
	if botID := h.tg.BotID(); botID != 0 && merged.User.Id != botID {
		observability.IncWebhookEvent("membership_other_user")
		return
	}

	decision := linking.ApplyMembership(merged.Status, merged.CanInviteUsers)
	if decision.Ignore {
		observability.IncWebhookEvent("membership_ignored")
		return
	}

	// On removal the bot just lost access, so the metadata lookup can only
	// fail; keep the conservative flag defaults instead.
	var flags telegram.ChatFlags
	if decision.Status != models.ChatInactive {
		flags = h.tg.ChatFlags(upd.Chat.Id)
		if flags.Degraded != nil {
			log.Printf("webhook: chat flags degraded: %v", flags.Degraded)
		}
	}

	chat, err := h.chats.UpsertMembership(ctx, models.ChatMembershipUpdate{
		TgChatID:       upd.Chat.Id,
		Type:           models.ChatType(upd.Chat.Type),
		Title:          chatTitle(&upd.Chat),
		Username:       upd.Chat.Username,
		Status:         decision.Status,
		AddedBy:        upd.From.Id,
		CanInviteUsers: merged.CanInviteUsers,
		JoinByRequest:  flags.JoinByRequest,
	})
	if err != nil {
		log.Printf("webhook: upsert membership: %v", err)
		return
	}
	observability.IncWebhookEvent("membership_" + string(decision.Status))

	if decision.Linkable {
		h.linkChatToProject(ctx, chat, upd.From.Id)
	}
}

// chatTitle picks the best available display name for a chat.
func chatTitle(chat *tgbotapi.Chat) string {
	if chat.Title != "" {
		return chat.Title
	}
	if chat.Username != "" {
		return chat.Username
	}
	return strconv.FormatInt(chat.Id, 10)
}

// linkChatToProject consumes the matching intent now that the bot is a
// working admin. The conditional consume makes duplicate deliveries publish
// at most one chat_linked event.
func (h *WebhookHandler) linkChatToProject(ctx context.Context, chat models.TelegramChat, actorID int64) {
	intent, err := h.matchLinkableIntent(ctx, chat.TgID, actorID)
	if err != nil {
		if errors.Is(err, repositories.ErrIntentNotFound) {
			observability.IncWebhookEvent("linkable_unmatched")
			log.Printf("webhook: active chat %d has no matching intent", chat.TgID)
			return
		}
		log.Printf("webhook: match linkable intent: %v", err)
		return
	}

	bound, err := h.chats.BindProject(ctx, chat.TgID, intent.ProjectID)
	if err != nil {
		log.Printf("webhook: bind project: %v", err)
		return
	}
	if !bound {
		observability.IncWebhookEvent("bind_conflict")
		log.Printf("webhook: chat %d already bound to another project", chat.TgID)
		return
	}

	consumed, err := h.intents.MarkConsumed(ctx, intent.ID, chat.TgID)
	if err != nil {
		log.Printf("webhook: consume intent: %v", err)
		return
	}
	if !consumed {
		return
	}

	observability.IncLinkCompleted()

	event := models.LinkEvent{
		Type:      models.EventChatLinked,
		Token:     intent.Token,
		ChatID:    chat.TgID,
		ProjectID: intent.ProjectID,
		Title:     chat.Title,
		Status:    models.ChatActive,
	}
	if err := h.bridge.Publish(ctx, intent.Token, event); err != nil {
		log.Printf("webhook: publish link event: %v", err)
	}

	if err := h.tg.SendMessage(chat.TgID, "Channel connected. Subscribers can now be let in automatically."); err != nil {
		log.Printf("webhook: confirmation message: %v", err)
	}

	if h.audit != nil {
		h.audit.Emit(ctx, "info",
			fmt.Sprintf("chat %d linked to project %s", chat.TgID, intent.ProjectID),
			uuidFallback(ctx), &intent.InitiatorID)
	}
}

// matchLinkableIntent resolves a now-linkable chat to an intent, trying the
// chat already recorded on an intent first and the promoting actor's
// Telegram identity second.
func (h *WebhookHandler) matchLinkableIntent(ctx context.Context, chatID, actorID int64) (models.LinkIntent, error) {
	intent, err := h.intents.FindActiveByChat(ctx, chatID)
	if err == nil {
		return intent, nil
	}
	if !errors.Is(err, repositories.ErrIntentNotFound) {
		return models.LinkIntent{}, err
	}
	return h.intents.FindActiveByTelegramUser(ctx, actorID)
}

// uuidFallback returns the request id carried in ctx by the HTTP layer, or a
// fresh one. Webhook processing has no authenticated caller, so this is the
// only correlation handle audit records get.
func uuidFallback(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok && requestID != "" {
		return requestID
	}
	return newRequestID()
}

type requestIDKey struct{}
