package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"omnichat-platform/internal/channel"
	"omnichat-platform/internal/chat"
	"omnichat-platform/internal/parser"
)

// WebhookHandlers terminate platform callbacks. The contract with every
// platform is the same: acknowledge with 200 no matter what, or the
// platform retries and eventually disables the webhook. All failure
// handling happens behind the ack.
type WebhookHandlers struct {
	Log    *slog.Logger
	Parser *parser.Table
	Router *chat.Router

	// MessengerVerifyToken answers the Graph API subscription challenge.
	MessengerVerifyToken string
}

// Receive handles one platform's webhook POST.
func (h WebhookHandlers) Receive(ct channel.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			h.Log.Warn("webhook body read failed", "channel", ct, "err", err)
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		msg := h.Parser.Parse(ct, body)
		if msg == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		if _, err := h.Router.Route(c.Request.Context(), msg); err != nil {
			if errors.Is(err, chat.ErrDuplicateDelivery) {
				c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
				return
			}
			h.Log.Error("inbound routing failed",
				"channel", ct, "platform_message_id", msg.PlatformMessageID, "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// MessengerVerify answers the one-time GET challenge Meta sends when the
// webhook subscription is created.
func (h WebhookHandlers) MessengerVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && h.MessengerVerifyToken != "" && token == h.MessengerVerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}
	c.String(http.StatusForbidden, "verification failed")
}
