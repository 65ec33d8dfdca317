package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// AccessRepository answers "may this user use this chat" from subscription
// state. It is a pure point-in-time read: no caching, so a cancellation is
// visible on the very next call.
type AccessRepository interface {
	HasAccess(ctx context.Context, userID int64, tgChatID int64) (bool, error)
}

// AccessRepo is a sqlx implementation of AccessRepository.
type AccessRepo struct {
	db *sqlx.DB
}

// NewAccessRepo constructs an AccessRepo.
func NewAccessRepo(db *sqlx.DB) *AccessRepo {
	return &AccessRepo{db: db}
}

// HasAccess reports whether the user holds an active, unexpired subscription
// whose plan is bound to the chat, either explicitly or via all_channels.
func (r *AccessRepo) HasAccess(ctx context.Context, userID int64, tgChatID int64) (bool, error) {
	var allowed bool
	err := r.db.GetContext(ctx, &allowed,
		`SELECT EXISTS(
            SELECT 1
            FROM subscriptions s
            JOIN plans p ON p.id = s.plan_id
            JOIN telegram_chats c ON c.tg_id = $2 AND c.project_id = p.project_id
            WHERE s.user_id = $1
              AND s.status = 'active'
              AND (s.ends_at IS NULL OR s.ends_at > NOW())
              AND (p.all_channels OR EXISTS (
                  SELECT 1 FROM plan_channels pc WHERE pc.plan_id = p.id AND pc.chat_id = c.id))
        )`,
		userID, tgChatID)
	return allowed, err
}
