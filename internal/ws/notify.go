// Package ws serves the websocket endpoint where clients wait for the chat
// linking handshake to finish.
package ws

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"chatlink-service/internal/bridge"
	"chatlink-service/internal/models"
	"chatlink-service/internal/observability"
)

const wsKind = "link"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NotifyHandler pushes exactly one event per connection: either the
// chat_linked notification for the token, or a timeout after the idle window.
type NotifyHandler struct {
	bridge      bridge.Bridge
	idleTimeout time.Duration
}

func NewNotifyHandler(br bridge.Bridge, idleTimeout time.Duration) *NotifyHandler {
	return &NotifyHandler{bridge: br, idleTimeout: idleTimeout}
}

// Handle upgrades the connection and waits for the token's event. The bridge
// subscription is taken before the upgrade so an event published right after
// the HTTP response cannot slip through the gap.
func (h *NotifyHandler) Handle(c *gin.Context) {
	tok := c.Param("token")
	if tok == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token"})
		return
	}

	sub, err := h.bridge.Subscribe(c.Request.Context(), tok)
	if err != nil {
		log.Printf("ws: subscribe %s: %v", tok, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		log.Printf("ws: upgrade: %v", err)
		return
	}

	info := ConnInfo{
		ConnID:      newConnID(),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     traceIDFromContext(c.Request.Context()),
		ConnectedAt: time.Now(),
	}

	observability.IncWSActive(wsKind)
	observability.IncWSEvent(wsKind, "connected")
	publishConnEvent(c.Request.Context(), "connected", info, tok)

	defer func() {
		sub.Close()
		conn.Close()
		observability.DecWSActive(wsKind)
		observability.IncWSEvent(wsKind, "disconnected")
		publishConnEvent(c.Request.Context(), "disconnected", info, tok)
	}()

	// Read pump: the client never sends data we care about, but reading is
	// what surfaces the close frame when it goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(h.idleTimeout)
	defer timer.Stop()

	select {
	case event, ok := <-sub.Events():
		if !ok {
			return
		}
		if err := conn.WriteJSON(event); err != nil {
			log.Printf("ws: write event conn=%s: %v", info.ConnID, err)
			return
		}
		observability.IncWSEvent(wsKind, event.Type)

	case <-timer.C:
		timeout := models.LinkEvent{Type: models.EventTimeout, Token: tok}
		if err := conn.WriteJSON(timeout); err != nil {
			log.Printf("ws: write timeout conn=%s: %v", info.ConnID, err)
			return
		}
		observability.IncWSEvent(wsKind, models.EventTimeout)

	case <-done:
	}
}
