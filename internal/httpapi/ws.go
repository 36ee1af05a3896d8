package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"omnichat-platform/internal/auth"
	"omnichat-platform/internal/realtime"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The dashboard runs on its own origin; the bearer token is the gate.
	CheckOrigin: func(*http.Request) bool { return true },
}

// WSHandlers expose the live event stream.
type WSHandlers struct {
	Auth *auth.Manager
	Hub  *realtime.Hub
}

// Stream upgrades a staff connection and subscribes it to a conversation's
// events, or to everything with conversation_id 0 (or omitted). Browsers
// cannot set headers on WebSocket dials, so the token also rides a query
// parameter.
func (h WSHandlers) Stream(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		token = strings.TrimPrefix(raw, "Bearer ")
	}
	if _, err := h.Auth.Verify(token, auth.TokenTypeAccess, time.Now()); err != nil {
		respondError(c, http.StatusUnauthorized, classInvalid, "invalid token")
		return
	}

	conversationID, _ := strconv.ParseInt(c.Query("conversation_id"), 10, 64)
	if conversationID < 0 {
		conversationID = 0
	}

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response.
		return
	}
	h.Hub.Register(conn, conversationID)
}
