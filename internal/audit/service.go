package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogWebhookDropped records a webhook delivery suppressed by the dedup guard.
func (s *Service) LogWebhookDropped(ctx context.Context, channelType, platformMessageID string) error {
	return s.Append(ctx, Event{
		Type:    EventTypeWebhookDropped,
		Message: "duplicate webhook delivery dropped",
		Metadata: fmt.Sprintf(`{"channel":%q,"platform_message_id":%q}`,
			channelType, platformMessageID),
	})
}

// LogStaffMessage records a staff reply, whatever its delivery outcome.
func (s *Service) LogStaffMessage(ctx context.Context, staffID string, conversationID, messageID int64, delivered bool) error {
	return s.Append(ctx, Event{
		Type:           EventTypeStaffMessageSent,
		ActorStaffID:   staffID,
		ConversationID: conversationID,
		Message:        "staff message sent",
		Metadata:       fmt.Sprintf(`{"message_id":%d,"delivered":%t}`, messageID, delivered),
	})
}

// LogCallInitiated records a new call room handed to a conversation.
func (s *Service) LogCallInitiated(ctx context.Context, staffID string, conversationID, callID int64, roomID string) error {
	return s.Append(ctx, Event{
		Type:           EventTypeCallInitiated,
		ActorStaffID:   staffID,
		ConversationID: conversationID,
		CallID:         callID,
		RoomID:         roomID,
		Message:        "call initiated",
	})
}

// LogCallStatusChanged records a call lifecycle transition.
func (s *Service) LogCallStatusChanged(ctx context.Context, conversationID, callID int64, roomID, from, to string) error {
	return s.Append(ctx, Event{
		Type:           EventTypeCallStatusChanged,
		ConversationID: conversationID,
		CallID:         callID,
		RoomID:         roomID,
		Message:        "call status changed",
		Metadata:       fmt.Sprintf(`{"from":%q,"to":%q}`, from, to),
	})
}

// LogConversationClosed records a staff-driven conversation close.
func (s *Service) LogConversationClosed(ctx context.Context, staffID string, conversationID int64) error {
	return s.Append(ctx, Event{
		Type:           EventTypeConversationClosed,
		ActorStaffID:   staffID,
		ConversationID: conversationID,
		Message:        "conversation closed",
	})
}
