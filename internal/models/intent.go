package models

import "time"

// IntentStatus is the lifecycle state of a LinkIntent.
type IntentStatus string

const (
	IntentPending   IntentStatus = "pending"
	IntentConsumed  IntentStatus = "consumed"
	IntentExpired   IntentStatus = "expired"
	IntentCancelled IntentStatus = "cancelled"
)

// LinkIntent is a short-lived, tokenized request to bind one Telegram chat to
// one project. It glues together the project, the initiating user, the
// Telegram identity that pressed /start, the share request id and, once the
// handshake finishes, the linked chat.
type LinkIntent struct {
	ID          int64        `db:"id" json:"id"`
	ProjectID   string       `db:"project_id" json:"project_id"`
	InitiatorID int64        `db:"initiator_id" json:"initiator_id"`
	Token       string       `db:"token" json:"token"`
	TgUserID    *int64       `db:"tg_user_id" json:"tg_user_id,omitempty"`
	TgRequestID *int64       `db:"tg_request_id" json:"tg_request_id,omitempty"`
	ChatID      *int64       `db:"chat_id" json:"chat_id,omitempty"`
	Status      IntentStatus `db:"status" json:"status"`
	ExpiresAt   time.Time    `db:"expires_at" json:"expires_at"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	ConsumedAt  *time.Time   `db:"consumed_at" json:"consumed_at,omitempty"`
}

// IsActive reports whether the intent can still drive the handshake. Expiry is
// checked here rather than relying on the sweep having materialized it.
func (i LinkIntent) IsActive(now time.Time) bool {
	return i.Status == IntentPending && i.ExpiresAt.After(now)
}
