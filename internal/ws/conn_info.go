package ws

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// ConnInfo identifies one websocket connection for logging and events.
type ConnInfo struct {
	ConnID      string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

func newConnID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "conn-unknown"
	}
	return hex.EncodeToString(buf)
}
