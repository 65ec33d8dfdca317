package models

// Event types pushed to clients waiting on a link token.
const (
	EventChatLinked = "chat_linked"
	EventTimeout    = "timeout"
)

// LinkEvent is the payload delivered through the notification bridge when the
// linking handshake completes, and to websocket clients on idle timeout.
type LinkEvent struct {
	Type      string     `json:"type"`
	Token     string     `json:"token"`
	ChatID    int64      `json:"chat_id,omitempty"`
	ProjectID string     `json:"project_id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Status    ChatStatus `json:"status,omitempty"`
}
