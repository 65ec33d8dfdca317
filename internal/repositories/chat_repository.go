package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"chatlink-service/internal/models"
)

var ErrChatNotFound = errors.New("telegram chat not found")

const chatColumns = `id, tg_id, type, title, username, project_id, status, added_by, can_invite_users, join_by_request, last_synced_at, created_at`

// ChatRepository abstracts persistence of tracked Telegram chats.
type ChatRepository interface {
	UpsertShared(ctx context.Context, tgChatID int64, projectID string, addedBy int64) (models.TelegramChat, error)
	UpsertMembership(ctx context.Context, upd models.ChatMembershipUpdate) (models.TelegramChat, error)
	BindProject(ctx context.Context, tgChatID int64, projectID string) (bool, error)
	GetByTgID(ctx context.Context, tgChatID int64) (models.TelegramChat, error)
	ListByProject(ctx context.Context, projectID string) ([]models.TelegramChat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// UpsertShared records a chat the user shared with the bot. The chat waits in
// pending_rights until a membership event proves the bot can work there, and
// the project is bound only tentatively: an existing binding is kept.
func (r *ChatRepo) UpsertShared(ctx context.Context, tgChatID int64, projectID string, addedBy int64) (models.TelegramChat, error) {
	var chat models.TelegramChat
	err := r.db.GetContext(ctx, &chat,
		`INSERT INTO telegram_chats (tg_id, type, status, project_id, added_by)
         VALUES ($1, 'supergroup', 'pending_rights', $2, $3)
         ON CONFLICT (tg_id) DO UPDATE SET
             status='pending_rights',
             added_by=EXCLUDED.added_by,
             project_id=COALESCE(telegram_chats.project_id, EXCLUDED.project_id)
         RETURNING `+chatColumns,
		tgChatID, projectID, addedBy)
	return chat, err
}

// UpsertMembership applies a my_chat_member event: chat metadata, computed
// status, capability flags and the sync timestamp. The project binding is
// deliberately left alone; only BindProject may set it.
func (r *ChatRepo) UpsertMembership(ctx context.Context, upd models.ChatMembershipUpdate) (models.TelegramChat, error) {
	var chat models.TelegramChat
	err := r.db.GetContext(ctx, &chat,
		`INSERT INTO telegram_chats (tg_id, type, title, username, status, added_by, can_invite_users, join_by_request, last_synced_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
         ON CONFLICT (tg_id) DO UPDATE SET
             type=EXCLUDED.type,
             title=EXCLUDED.title,
             username=EXCLUDED.username,
             status=EXCLUDED.status,
             added_by=EXCLUDED.added_by,
             can_invite_users=EXCLUDED.can_invite_users,
             join_by_request=EXCLUDED.join_by_request,
             last_synced_at=NOW()
         RETURNING `+chatColumns,
		upd.TgChatID, upd.Type, upd.Title, upd.Username, upd.Status, upd.AddedBy, upd.CanInviteUsers, upd.JoinByRequest)
	return chat, err
}

// BindProject sets the chat's project once. Returns false when the chat is
// already bound to a different project; the existing binding is never
// overwritten by a later unrelated event.
func (r *ChatRepo) BindProject(ctx context.Context, tgChatID int64, projectID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE telegram_chats SET project_id=$2
         WHERE tg_id=$1 AND (project_id IS NULL OR project_id=$2)`,
		tgChatID, projectID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// GetByTgID fetches a chat by its Telegram id.
func (r *ChatRepo) GetByTgID(ctx context.Context, tgChatID int64) (models.TelegramChat, error) {
	var chat models.TelegramChat
	err := r.db.GetContext(ctx, &chat,
		`SELECT `+chatColumns+` FROM telegram_chats WHERE tg_id=$1`, tgChatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TelegramChat{}, ErrChatNotFound
	}
	return chat, err
}

// ListByProject returns chats bound to the project, newest first.
func (r *ChatRepo) ListByProject(ctx context.Context, projectID string) ([]models.TelegramChat, error) {
	var chats []models.TelegramChat
	err := r.db.SelectContext(ctx, &chats,
		`SELECT `+chatColumns+` FROM telegram_chats WHERE project_id=$1 ORDER BY created_at DESC`, projectID)
	return chats, err
}
