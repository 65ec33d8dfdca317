// Package linking holds the pure state-transition rules of the chat linking
// handshake, so they can be exercised without a live store.
package linking

import "chatlink-service/internal/models"

// Decision is the outcome of applying a bot membership change to a chat.
type Decision struct {
	// Status the chat should move to.
	Status models.ChatStatus
	// Linkable is set when the bot became a working admin, which is the only
	// point where a matching intent may be consumed.
	Linkable bool
	// Ignore is set for member statuses outside the handled set; the event is
	// acknowledged with no state change.
	Ignore bool
}

// ApplyMembership maps the bot's new member status and admin rights onto the
// chat status lifecycle. An administrator without invite rights stays in
// pending_rights: it cannot let subscribers in, so the chat is not working yet.
func ApplyMembership(memberStatus string, canInviteUsers bool) Decision {
	switch memberStatus {
	case "administrator":
		if canInviteUsers {
			return Decision{Status: models.ChatActive, Linkable: true}
		}
		return Decision{Status: models.ChatPendingRights}
	case "member", "restricted":
		return Decision{Status: models.ChatPendingRights}
	case "left", "kicked":
		return Decision{Status: models.ChatInactive}
	default:
		return Decision{Ignore: true}
	}
}
