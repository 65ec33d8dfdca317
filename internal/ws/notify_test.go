package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatlink-service/internal/bridge"
	"chatlink-service/internal/models"
)

func newNotifyServer(t *testing.T, br bridge.Bridge, idleTimeout time.Duration) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/link-status/:token", NewNotifyHandler(br, idleTimeout).Handle)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func dial(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/link-status/" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestNotifyDeliversLinkedEvent(t *testing.T) {
	br := bridge.NewMemoryBridge()
	defer br.Close()
	server := newNotifyServer(t, br, 5*time.Second)

	conn := dial(t, server, "proj_tok1")

	// The subscription is taken before the upgrade completes, so once the
	// dial returns the publish below cannot be missed.
	event := models.LinkEvent{
		Type:      models.EventChatLinked,
		Token:     "proj_tok1",
		ChatID:    -100123,
		ProjectID: "f2f8f2cc-0000-4000-8000-000000000001",
		Title:     "My Channel",
		Status:    models.ChatActive,
	}
	require.NoError(t, br.Publish(context.Background(), "proj_tok1", event))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.LinkEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, event, got)
}

func TestNotifyTimesOut(t *testing.T) {
	br := bridge.NewMemoryBridge()
	defer br.Close()
	server := newNotifyServer(t, br, 100*time.Millisecond)

	conn := dial(t, server, "proj_tok2")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.LinkEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventTimeout, got.Type)
	assert.Equal(t, "proj_tok2", got.Token)
}

func TestNotifyIsolatesTokens(t *testing.T) {
	br := bridge.NewMemoryBridge()
	defer br.Close()
	server := newNotifyServer(t, br, 300*time.Millisecond)

	conn := dial(t, server, "proj_tok3")

	// An event for a different token must not reach this connection; the
	// idle timeout fires instead.
	require.NoError(t, br.Publish(context.Background(), "proj_other", models.LinkEvent{
		Type:  models.EventChatLinked,
		Token: "proj_other",
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.LinkEvent
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventTimeout, got.Type)
}
