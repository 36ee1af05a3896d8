package call

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"omnichat-platform/internal/audit"
	"omnichat-platform/pkg/utils"
)

// Event is the payload fanned out to call topic subscribers.
type Event struct {
	Type           string `json:"type"`
	CallID         int64  `json:"callId"`
	ConversationID int64  `json:"conversationId"`
	RoomID         string `json:"roomId"`
	RoomURL        string `json:"roomUrl,omitempty"`
	Status         Status `json:"status"`
	UserID         string `json:"userId,omitempty"`
}

// Publisher fans call events out to live subscribers. Best-effort.
type Publisher interface {
	PublishCallEvent(ctx context.Context, conversationID int64, ev Event)
}

// Service owns the call lifecycle. All writes run under the conversation or
// call row lock so concurrent initiations and status updates serialize.
type Service struct {
	db        *sql.DB
	log       *slog.Logger
	clock     func() time.Time
	rooms     RoomConfig
	publisher Publisher
	auditor   *audit.Service
}

func NewService(db *sql.DB, log *slog.Logger, rooms RoomConfig, publisher Publisher, auditor *audit.Service) *Service {
	return &Service{
		db:        db,
		log:       log,
		clock:     time.Now,
		rooms:     rooms,
		publisher: publisher,
		auditor:   auditor,
	}
}

// Initiate creates a fresh room for the conversation. An unfinished
// previous call is force-ended first: one conversation never has two live
// rooms. Concurrent initiations serialize on the conversation row lock, so
// exactly one of them wins the newest room.
func (s *Service) Initiate(ctx context.Context, conversationID int64, staffID string) (Call, error) {
	now := s.clock().UTC()
	var created Call
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if err := lockConversationRow(ctx, tx, conversationID); err != nil {
			return err
		}

		if prev, found, err := findActiveCallTx(ctx, tx, conversationID); err != nil {
			return err
		} else if found {
			ended, err := applyTransition(prev, StatusEnded, now)
			if err != nil {
				return err
			}
			if _, err := updateCallTx(ctx, tx, ended); err != nil {
				return err
			}
			s.log.Info("force-ended stale call before new room",
				"conversation_id", conversationID, "call_id", prev.ID, "room_id", prev.RoomID)
		}

		roomID := newRoomID(s.rooms.RoomPrefix, conversationID)
		var err error
		created, err = insertCall(ctx, tx, Call{
			ConversationID: conversationID,
			RoomID:         roomID,
			RoomURL:        s.rooms.roomURL(roomID),
			Status:         StatusInitiated,
			InitiatedBy:    staffID,
			InitiatedAt:    now,
		})
		return err
	})
	if err != nil {
		return Call{}, err
	}

	s.publish(ctx, Event{
		Type:           "call_initiated",
		CallID:         created.ID,
		ConversationID: created.ConversationID,
		RoomID:         created.RoomID,
		RoomURL:        created.RoomURL,
		Status:         created.Status,
		UserID:         staffID,
	})
	if s.auditor != nil {
		if err := s.auditor.LogCallInitiated(ctx, staffID, created.ConversationID, created.ID, created.RoomID); err != nil {
			s.log.Warn("audit append failed", "err", err)
		}
	}
	return created, nil
}

// Transition moves a call to a new status under its row lock. Terminal
// calls reject every transition with ErrTerminalState.
func (s *Service) Transition(ctx context.Context, callID int64, to Status) (Call, error) {
	now := s.clock().UTC()
	var from Status
	var updated Call
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		current, err := lockCall(ctx, tx, callID)
		if err != nil {
			return err
		}
		from = current.Status
		next, err := applyTransition(current, to, now)
		if err != nil {
			return err
		}
		updated, err = updateCallTx(ctx, tx, next)
		return err
	})
	if err != nil {
		return Call{}, err
	}

	s.publish(ctx, Event{
		Type:           "call_status",
		CallID:         updated.ID,
		ConversationID: updated.ConversationID,
		RoomID:         updated.RoomID,
		Status:         updated.Status,
	})
	if s.auditor != nil {
		if err := s.auditor.LogCallStatusChanged(ctx, updated.ConversationID, updated.ID, updated.RoomID, string(from), string(updated.Status)); err != nil {
			s.log.Warn("audit append failed", "err", err)
		}
	}
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Call, error) {
	return getCall(ctx, s.db, id)
}

// ByRoomID resolves a call from its room name, tolerating case drift.
func (s *Service) ByRoomID(ctx context.Context, roomID string) (Call, error) {
	return findByRoomID(ctx, s.db, roomID)
}

// Active returns the conversation's current unfinished call.
func (s *Service) Active(ctx context.Context, conversationID int64) (Call, error) {
	return findActiveCall(ctx, s.db, conversationID)
}

// History lists the conversation's calls, newest first.
func (s *Service) History(ctx context.Context, conversationID int64) ([]Call, error) {
	return listCallsByConversation(ctx, s.db, conversationID)
}

func (s *Service) publish(ctx context.Context, ev Event) {
	if s.publisher != nil {
		s.publisher.PublishCallEvent(ctx, ev.ConversationID, ev)
	}
}
