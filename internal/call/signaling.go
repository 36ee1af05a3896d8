package call

import (
	"context"
	"fmt"
	"log/slog"
)

type callStore interface {
	ByRoomID(ctx context.Context, roomID string) (Call, error)
	Transition(ctx context.Context, callID int64, to Status) (Call, error)
}

type eventPublisher interface {
	PublishCallEvent(ctx context.Context, conversationID int64, ev Event)
}

// Signaling translates participant room events into lifecycle transitions
// and broadcasts. Callers acknowledge signals regardless of outcome; a
// participant browser can do nothing useful with our persistence errors.
type Signaling struct {
	log       *slog.Logger
	calls     callStore
	publisher eventPublisher
}

func NewSignaling(log *slog.Logger, calls callStore, publisher eventPublisher) *Signaling {
	return &Signaling{log: log, calls: calls, publisher: publisher}
}

// Join handles a participant entering the room: the call goes ACTIVE (the
// first join pins started_at) and subscribers learn who arrived.
func (s *Signaling) Join(ctx context.Context, roomID, userID string) error {
	c, err := s.calls.ByRoomID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}

	c, err = s.calls.Transition(ctx, c.ID, StatusActive)
	if err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}

	s.publisher.PublishCallEvent(ctx, c.ConversationID, Event{
		Type:           "call_joined",
		CallID:         c.ID,
		ConversationID: c.ConversationID,
		RoomID:         c.RoomID,
		Status:         c.Status,
		UserID:         userID,
	})
	return nil
}

// Leave handles a participant leaving. The room ends when anyone leaves;
// two-party support calls have no meaningful half-open state.
func (s *Signaling) Leave(ctx context.Context, roomID, userID string) error {
	c, err := s.calls.ByRoomID(ctx, roomID)
	if err != nil {
		return fmt.Errorf("leave %s: %w", roomID, err)
	}

	c, err = s.calls.Transition(ctx, c.ID, StatusEnded)
	if err != nil {
		return fmt.Errorf("leave %s: %w", roomID, err)
	}

	s.publisher.PublishCallEvent(ctx, c.ConversationID, Event{
		Type:           "call_ended",
		CallID:         c.ID,
		ConversationID: c.ConversationID,
		RoomID:         c.RoomID,
		Status:         c.Status,
		UserID:         userID,
	})
	return nil
}
