package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"omnichat-platform/internal/channel"
	"omnichat-platform/internal/httpapi"
	"omnichat-platform/pkg/utils"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, db *sql.DB, h httpapi.Handlers, wh httpapi.WebhookHandlers, ws httpapi.WSHandlers, authMW gin.HandlerFunc) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Platform ingress. Always acks so platforms do not retry forever.
	r.POST("/webhooks/telegram", wh.Receive(channel.TypeTelegram))
	r.POST("/webhooks/messenger", wh.Receive(channel.TypeMessenger))
	r.GET("/webhooks/messenger", wh.MessengerVerify)
	r.POST("/webhooks/discord", wh.Receive(channel.TypeDiscord))

	// Presigned media links carry their own auth.
	r.GET("/media/*key", h.ServeMedia)

	// Conference participants are not staff; these ack regardless.
	r.POST("/calls/signal/join", h.SignalJoin)
	r.POST("/calls/signal/leave", h.SignalLeave)

	r.GET("/ws", ws.Stream)

	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		v1.GET("/conversations", h.ListConversations)
		v1.GET("/conversations/:id", h.GetConversation)
		v1.GET("/conversations/:id/messages", h.ListMessages)
		v1.POST("/conversations/:id/messages", h.SendMessage)
		v1.POST("/conversations/:id/files", h.SendFile)
		v1.POST("/conversations/:id/close", h.CloseConversation)

		v1.GET("/messages/:id/file-url", h.FileURL)

		v1.POST("/conversations/:id/calls", h.InitiateCall)
		v1.GET("/conversations/:id/calls", h.CallHistory)
		v1.GET("/conversations/:id/calls/active", h.ActiveCall)
		v1.GET("/calls/:id", h.GetCall)
		v1.PATCH("/calls/:id/status", h.UpdateCallStatus)
		v1.POST("/calls/:id/reject", h.RejectCall)
		v1.GET("/calls/room/:room_id", h.CallByRoom)
	}
}
