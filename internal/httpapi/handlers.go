package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"omnichat-platform/internal/audit"
	"omnichat-platform/internal/auth"
	"omnichat-platform/internal/call"
	"omnichat-platform/internal/channel"
	"omnichat-platform/internal/chat"
	"omnichat-platform/internal/connector"
	"omnichat-platform/internal/parser"
	"omnichat-platform/internal/storage"
)

const (
	mediaLinkTTL  = 15 * time.Minute
	maxUploadSize = 20 << 20
)

// taskRunner dispatches fire-and-forget work off the request path.
// *notify.Pool satisfies it.
type taskRunner interface {
	Submit(name string, fn func(context.Context)) bool
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Log           *slog.Logger
	Auth          *auth.Manager
	Users         *chat.Registry
	Conversations *chat.Conversations
	Bus           *chat.Bus
	Calls         *call.Service
	Signaling     *call.Signaling
	Connectors    *connector.Registry
	Blobs         *storage.Postgres
	Signer        *storage.Signer
	Auditor       *audit.Service
	Tasks         taskRunner

	// TelegramMedia sends attachment bytes natively; nil when the Telegram
	// channel is not configured.
	TelegramMedia *connector.Telegram
}

// --- Auth ---

type loginRequest struct {
	StaffID string `json:"staff_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, classInvalid, "invalid json")
		return
	}
	if req.StaffID == "" || req.Role == "" {
		respondError(c, http.StatusBadRequest, classInvalid, "staff_id and role required")
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.StaffID, req.Name, req.Role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, classInternal, "token issuance failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

func (h Handlers) Me(c *gin.Context) {
	staffID, _ := auth.StaffID(c.Request.Context())
	role, _ := auth.Role(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"staff_id": staffID,
		"name":     auth.StaffName(c.Request.Context()),
		"role":     role,
	})
}

// --- Conversations ---

func (h Handlers) ListConversations(c *gin.Context) {
	status := chat.ConversationStatus(strings.ToUpper(c.Query("status")))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	convs, err := h.Conversations.List(c.Request.Context(), status, limit)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

func (h Handlers) GetConversation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	conv, err := h.Conversations.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	user, err := h.Users.Get(c.Request.Context(), conv.UserID)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "user": user})
}

func (h Handlers) ListMessages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	before, _ := strconv.ParseInt(c.Query("before"), 10, 64)
	if before < 0 {
		before = 0
	}

	page, err := h.Conversations.Messages(c.Request.Context(), id, before, limit)
	if err != nil {
		failWith(c, err)
		return
	}
	out := make([]messageView, 0, len(page.Items))
	for _, m := range page.Items {
		out = append(out, h.view(m))
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":   out,
		"hasMore":    page.HasMore,
		"totalCount": page.TotalCount,
	})
}

// FileURL hands out a fresh expiring link for a message's attachment.
func (h Handlers) FileURL(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	m, err := h.Bus.Message(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	v := h.view(m)
	if v.AttachmentURL == "" {
		failWith(c, chat.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"url":        v.AttachmentURL,
		"expires_in": int64(mediaLinkTTL.Seconds()),
	})
}

func (h Handlers) CloseConversation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	conv, err := h.Conversations.Close(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	if h.Auditor != nil {
		staffID, _ := auth.StaffID(c.Request.Context())
		if err := h.Auditor.LogConversationClosed(c.Request.Context(), staffID, conv.ID); err != nil {
			h.Log.Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv})
}

// --- Outbound messages ---

type sendMessageRequest struct {
	Content string `json:"content"`
}

// SendMessage delivers a staff reply through the conversation's platform.
// The response is 200 even when platform delivery fails: the message row
// exists either way and carries the outcome in its status.
func (h Handlers) SendMessage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		respondError(c, http.StatusBadRequest, classInvalid, "content required")
		return
	}

	conv, user, recipient, err := h.resolveRecipient(c, id)
	if err != nil {
		failWith(c, err)
		return
	}

	saved, err := h.Bus.SaveOutbound(c.Request.Context(), conv, chat.Message{Content: req.Content})
	if err != nil {
		failWith(c, err)
		return
	}

	sendErr := h.deliverText(c, user.ChannelType, recipient, req.Content)
	final, err := h.Bus.FinalizeOutbound(c.Request.Context(), saved.ID, sendErr == nil)
	if err != nil {
		failWith(c, err)
		return
	}
	if sendErr != nil {
		h.Log.Warn("staff message delivery failed",
			"conversation_id", conv.ID, "message_id", final.ID, "err", sendErr)
	}
	h.auditStaffMessage(c, conv.ID, final.ID, sendErr == nil)

	c.JSON(http.StatusOK, gin.H{"message": h.view(final), "delivered": sendErr == nil})
}

// SendFile delivers a staff file upload. Telegram gets the bytes natively;
// other platforms fall back to the text content.
func (h Handlers) SendFile(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, classInvalid, "file required")
		return
	}
	if fileHeader.Size > maxUploadSize {
		respondError(c, http.StatusBadRequest, classInvalid, "file too large")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		failWith(c, err)
		return
	}
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	_ = f.Close()
	if err != nil || int64(len(data)) > maxUploadSize {
		respondError(c, http.StatusBadRequest, classInvalid, "file unreadable or too large")
		return
	}

	content := strings.TrimSpace(c.PostForm("content"))
	if content == "" {
		content = "[File: " + fileHeader.Filename + "]"
	}
	kind := parser.DefaultDocumentPolicy().Classify(
		fileHeader.Header.Get("Content-Type"), fileHeader.Filename)

	conv, user, recipient, err := h.resolveRecipient(c, id)
	if err != nil {
		failWith(c, err)
		return
	}

	saved, err := h.Bus.SaveOutbound(c.Request.Context(), conv, chat.Message{
		Content:     content,
		MessageType: string(kind),
	})
	if err != nil {
		failWith(c, err)
		return
	}
	saved, err = h.Bus.AttachUpload(c.Request.Context(), saved, string(kind), fileHeader.Filename, data)
	if err != nil {
		failWith(c, err)
		return
	}

	var sendErr error
	if user.ChannelType == channel.TypeTelegram && h.TelegramMedia != nil {
		sendErr = h.TelegramMedia.SendMediaBytes(c.Request.Context(), recipient, content, fileHeader.Filename, kind, data)
	} else {
		sendErr = h.deliverText(c, user.ChannelType, recipient, content)
	}

	final, err := h.Bus.FinalizeOutbound(c.Request.Context(), saved.ID, sendErr == nil)
	if err != nil {
		failWith(c, err)
		return
	}
	if sendErr != nil {
		h.Log.Warn("staff file delivery failed",
			"conversation_id", conv.ID, "message_id", final.ID, "err", sendErr)
	}
	h.auditStaffMessage(c, conv.ID, final.ID, sendErr == nil)

	c.JSON(http.StatusOK, gin.H{"message": h.view(final), "delivered": sendErr == nil})
}

// --- Calls ---

func (h Handlers) InitiateCall(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	staffID, err := auth.StaffID(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusUnauthorized, classInvalid, "staff identity required")
		return
	}

	created, err := h.Calls.Initiate(c.Request.Context(), id, staffID)
	if err != nil {
		failWith(c, err)
		return
	}

	// Hand the room link to the customer on their own platform, best-effort
	// and off the request path: the staff response must not wait on a
	// platform round trip.
	if _, user, recipient, rerr := h.resolveRecipient(c, id); rerr == nil {
		h.queueCallInvite(user.ChannelType, recipient, created)
	} else {
		h.Log.Warn("call invite skipped, no recipient",
			"conversation_id", id, "call_id", created.ID, "err", rerr)
	}

	c.JSON(http.StatusOK, gin.H{"call": created})
}

func (h Handlers) queueCallInvite(ct channel.Type, recipient string, created call.Call) {
	text := "You are invited to a call: " + created.RoomURL
	submitted := h.Tasks.Submit("call-invite", func(ctx context.Context) {
		conn, err := h.Connectors.Get(ct)
		if err != nil {
			h.Log.Warn("call invite skipped", "channel", ct, "call_id", created.ID, "err", err)
			return
		}
		if err := conn.Send(ctx, recipient, text); err != nil {
			h.Log.Warn("call invite delivery failed", "call_id", created.ID, "err", err)
		}
	})
	if !submitted {
		h.Log.Warn("call invite dropped, task queue full", "call_id", created.ID)
	}
}

func (h Handlers) CallHistory(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	calls, err := h.Calls.History(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func (h Handlers) ActiveCall(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	active, err := h.Calls.Active(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": active})
}

type updateCallStatusRequest struct {
	Status string `json:"status"`
}

func (h Handlers) UpdateCallStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateCallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Status == "" {
		respondError(c, http.StatusBadRequest, classInvalid, "status required")
		return
	}

	updated, err := h.Calls.Transition(c.Request.Context(), id, call.Status(strings.ToUpper(req.Status)))
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": updated})
}

func (h Handlers) GetCall(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	found, err := h.Calls.Get(c.Request.Context(), id)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": found})
}

// RejectCall is the customer-declined shortcut for PATCH status=REJECTED.
func (h Handlers) RejectCall(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	rejected, err := h.Calls.Transition(c.Request.Context(), id, call.StatusRejected)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": rejected})
}

func (h Handlers) CallByRoom(c *gin.Context) {
	roomID := c.Param("room_id")
	found, err := h.Calls.ByRoomID(c.Request.Context(), roomID)
	if err != nil {
		failWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call": found})
}

// --- Call signaling (public: participants are not staff) ---

type signalRequest struct {
	RoomID string `json:"room_id"`
	UserID string `json:"user_id"`
}

// SignalJoin acknowledges a participant entering a room. Always 200: a
// participant's browser can do nothing useful with our errors.
func (h Handlers) SignalJoin(c *gin.Context) {
	h.signal(c, "join", h.Signaling.Join)
}

// SignalLeave acknowledges a participant leaving a room.
func (h Handlers) SignalLeave(c *gin.Context) {
	h.signal(c, "leave", h.Signaling.Leave)
}

func (h Handlers) signal(c *gin.Context, name string, fn func(ctx context.Context, roomID, userID string) error) {
	var req signalRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RoomID == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}
	if err := fn(c.Request.Context(), req.RoomID, req.UserID); err != nil {
		h.Log.Warn("call signal failed", "signal", name, "room_id", req.RoomID, "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- helpers ---

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, classInvalid, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// resolveRecipient loads the conversation and its user and picks the
// platform-side delivery address.
func (h Handlers) resolveRecipient(c *gin.Context, conversationID int64) (chat.Conversation, chat.User, string, error) {
	conv, err := h.Conversations.Get(c.Request.Context(), conversationID)
	if err != nil {
		return chat.Conversation{}, chat.User{}, "", err
	}
	user, err := h.Users.Get(c.Request.Context(), conv.UserID)
	if err != nil {
		return chat.Conversation{}, chat.User{}, "", err
	}

	recipient := user.PlatformUserID
	if user.ChannelType == channel.TypeDiscord {
		if conv.ExternalChannelID == "" {
			return chat.Conversation{}, chat.User{}, "", chat.ErrMissingRecipient
		}
		recipient = conv.ExternalChannelID
	}
	return conv, user, recipient, nil
}

func (h Handlers) deliverText(c *gin.Context, ct channel.Type, recipient, text string) error {
	conn, err := h.Connectors.Get(ct)
	if err != nil {
		return err
	}
	return conn.Send(c.Request.Context(), recipient, text)
}

func (h Handlers) auditStaffMessage(c *gin.Context, conversationID, messageID int64, delivered bool) {
	if h.Auditor == nil {
		return
	}
	staffID, _ := auth.StaffID(c.Request.Context())
	if err := h.Auditor.LogStaffMessage(c.Request.Context(), staffID, conversationID, messageID, delivered); err != nil {
		h.Log.Warn("audit append failed", "err", err)
	}
}

// messageView decorates a message with a fetchable attachment link.
type messageView struct {
	chat.Message
	AttachmentURL string `json:"attachment_url,omitempty"`
}

func (h Handlers) view(m chat.Message) messageView {
	v := messageView{Message: m}
	switch {
	case m.AttachmentKey == "":
	case strings.HasPrefix(m.AttachmentKey, "http://"), strings.HasPrefix(m.AttachmentKey, "https://"):
		// Platform CDN refs are directly fetchable.
		v.AttachmentURL = m.AttachmentKey
	case h.Signer != nil:
		v.AttachmentURL = h.Signer.SignedURL(m.AttachmentKey, mediaLinkTTL)
	}
	return v
}
