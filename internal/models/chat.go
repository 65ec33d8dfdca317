package models

import "time"

// ChatType mirrors the chat type reported by Telegram.
type ChatType string

const (
	ChatTypeChannel    ChatType = "channel"
	ChatTypeSupergroup ChatType = "supergroup"
	ChatTypeGroup      ChatType = "group"
	ChatTypePrivate    ChatType = "private"
)

// ChatStatus is the local lifecycle of a tracked Telegram chat.
type ChatStatus string

const (
	// ChatActive means the bot is an administrator with invite rights.
	ChatActive ChatStatus = "active"
	// ChatPendingRights means the chat is known but the bot cannot do its job
	// yet (plain member, restricted, or admin without can_invite_users).
	ChatPendingRights ChatStatus = "pending_rights"
	// ChatInactive means the bot was removed or kicked.
	ChatInactive ChatStatus = "inactive"
)

// TelegramChat is a chat/channel on Telegram, tracked locally once discovered.
// ProjectID stays nil until an intent claims the chat; once set it is never
// silently overwritten by a later unrelated event.
type TelegramChat struct {
	ID             int64      `db:"id" json:"id"`
	TgID           int64      `db:"tg_id" json:"tg_id"`
	Type           ChatType   `db:"type" json:"type"`
	Title          string     `db:"title" json:"title"`
	Username       string     `db:"username" json:"username"`
	ProjectID      *string    `db:"project_id" json:"project_id,omitempty"`
	Status         ChatStatus `db:"status" json:"status"`
	AddedBy        *int64     `db:"added_by" json:"added_by,omitempty"`
	CanInviteUsers bool       `db:"can_invite_users" json:"can_invite_users"`
	JoinByRequest  bool       `db:"join_by_request" json:"join_by_request"`
	LastSyncedAt   *time.Time `db:"last_synced_at" json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// ChatMembershipUpdate carries everything a my_chat_member event tells us
// about the bot's standing in a chat, plus the join_by_request flag looked up
// out of band.
type ChatMembershipUpdate struct {
	TgChatID       int64
	Type           ChatType
	Title          string
	Username       string
	Status         ChatStatus
	AddedBy        int64
	CanInviteUsers bool
	JoinByRequest  bool
}
