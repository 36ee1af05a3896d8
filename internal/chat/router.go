package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"omnichat-platform/internal/audit"
	"omnichat-platform/internal/channel"
	"omnichat-platform/internal/connector"
)

// ErrDuplicateDelivery marks a webhook re-delivery suppressed by the dedup
// guard. Callers still acknowledge the webhook.
var ErrDuplicateDelivery = errors.New("duplicate webhook delivery")

type userRegistry interface {
	IsNewUser(ctx context.Context, platformUserID string, ct channel.Type) (bool, error)
	RegisterOrGet(ctx context.Context, msg *channel.CanonicalMessage) (User, error)
}

type messageSink interface {
	SaveInbound(ctx context.Context, user User, msg *channel.CanonicalMessage) (Message, error)
	SaveOutbound(ctx context.Context, conv Conversation, draft Message) (Message, error)
	FinalizeOutbound(ctx context.Context, messageID int64, delivered bool) (Message, error)
}

type deduper interface {
	FirstDelivery(ctx context.Context, ct channel.Type, platformMessageID string) (bool, error)
}

type connectorGateway interface {
	Get(ct channel.Type) (connector.Connector, error)
}

type taskSubmitter interface {
	Submit(name string, fn func(context.Context)) bool
}

// WelcomeConfig controls the first-contact auto-reply.
type WelcomeConfig struct {
	Enabled bool
	Text    string
}

// Router is the single inbound pipeline: dedup, identity resolution,
// persistence, then first-contact side effects. Order matters: the new-user
// check must precede registration or the welcome reply never fires.
type Router struct {
	log        *slog.Logger
	registry   userRegistry
	sink       messageSink
	dedup      deduper
	connectors connectorGateway
	tasks      taskSubmitter
	auditor    *audit.Service
	welcome    WelcomeConfig
}

func NewRouter(
	log *slog.Logger,
	registry userRegistry,
	sink messageSink,
	dedup deduper,
	connectors connectorGateway,
	tasks taskSubmitter,
	auditor *audit.Service,
	welcome WelcomeConfig,
) *Router {
	return &Router{
		log:        log,
		registry:   registry,
		sink:       sink,
		dedup:      dedup,
		connectors: connectors,
		tasks:      tasks,
		auditor:    auditor,
		welcome:    welcome,
	}
}

// Route processes one canonical inbound message end to end. A returned
// error never maps to a non-2xx webhook response; the caller logs and acks.
func (r *Router) Route(ctx context.Context, msg *channel.CanonicalMessage) (Message, error) {
	if msg == nil {
		return Message{}, fmt.Errorf("%w: nil message", ErrInvalidArgument)
	}

	if r.dedup != nil && msg.PlatformMessageID != "" {
		first, err := r.dedup.FirstDelivery(ctx, msg.Channel, msg.PlatformMessageID)
		switch {
		case err != nil:
			// A dead dedup store must not drop real messages; accept and
			// risk the duplicate instead.
			r.log.Warn("dedup check failed, accepting delivery",
				"channel", msg.Channel, "platform_message_id", msg.PlatformMessageID, "err", err)
		case !first:
			r.log.Info("duplicate webhook delivery dropped",
				"channel", msg.Channel, "platform_message_id", msg.PlatformMessageID)
			if r.auditor != nil {
				if err := r.auditor.LogWebhookDropped(ctx, string(msg.Channel), msg.PlatformMessageID); err != nil {
					r.log.Warn("audit append failed", "err", err)
				}
			}
			return Message{}, ErrDuplicateDelivery
		}
	}

	isNew, err := r.registry.IsNewUser(ctx, msg.PlatformUserID, msg.Channel)
	if err != nil {
		return Message{}, fmt.Errorf("new-user check: %w", err)
	}

	user, err := r.registry.RegisterOrGet(ctx, msg)
	if err != nil {
		return Message{}, fmt.Errorf("register user: %w", err)
	}

	saved, err := r.sink.SaveInbound(ctx, user, msg)
	if err != nil {
		return Message{}, fmt.Errorf("save inbound: %w", err)
	}

	if isNew && r.welcome.Enabled && r.welcome.Text != "" {
		r.sendWelcome(user, saved.ConversationID, msg)
	}
	return saved, nil
}

// sendWelcome fires the first-contact auto-reply off the webhook path. The
// welcome is a real outbound message: reserved PENDING, sent, then finalized,
// so it shows up in history and fan-out like any staff reply. A failed
// welcome is logged and forgotten; it never affects routing.
func (r *Router) sendWelcome(user User, conversationID int64, msg *channel.CanonicalMessage) {
	recipient := user.PlatformUserID
	if user.ChannelType == channel.TypeDiscord {
		recipient = msg.ExternalChannelID
	}
	if recipient == "" {
		r.log.Warn("welcome skipped, no recipient address",
			"channel", user.ChannelType, "user_id", user.ID)
		return
	}

	text := r.welcome.Text
	ct := user.ChannelType
	conv := Conversation{ID: conversationID, UserID: user.ID}
	submitted := r.tasks.Submit("welcome", func(ctx context.Context) {
		conn, err := r.connectors.Get(ct)
		if err != nil {
			r.log.Warn("welcome skipped", "channel", ct, "err", err)
			return
		}

		reserved, err := r.sink.SaveOutbound(ctx, conv, Message{Content: text})
		if err != nil {
			r.log.Warn("welcome reserve failed", "conversation_id", conv.ID, "err", err)
			return
		}

		sendErr := conn.Send(ctx, recipient, text)
		if sendErr != nil {
			r.log.Warn("welcome send failed", "channel", ct, "user_id", user.ID, "err", sendErr)
		}
		if _, err := r.sink.FinalizeOutbound(ctx, reserved.ID, sendErr == nil); err != nil {
			r.log.Warn("welcome finalize failed", "message_id", reserved.ID, "err", err)
		}
	})
	if !submitted {
		r.log.Warn("welcome dropped, task queue full", "channel", ct, "user_id", user.ID)
	}
}
