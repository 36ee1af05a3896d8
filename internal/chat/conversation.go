package chat

import (
	"context"
	"database/sql"
	"time"

	"omnichat-platform/pkg/utils"
)

// Conversations manages the open/closed lifecycle. At most one OPEN
// conversation exists per user; the partial unique index in the schema is
// the backstop, the user-row lock the fast path.
type Conversations struct {
	db    *sql.DB
	clock func() time.Time
}

func NewConversations(db *sql.DB) *Conversations {
	return &Conversations{db: db, clock: time.Now}
}

// getOrCreateActiveTx finds the user's OPEN conversation or starts one. The
// caller must hold the user row lock in the same transaction.
func getOrCreateActiveTx(ctx context.Context, tx *sql.Tx, userID int64, externalChannelID string, now time.Time) (Conversation, error) {
	conv, found, err := findOpenConversationTx(ctx, tx, userID)
	if err != nil {
		return Conversation{}, err
	}
	if found {
		if externalChannelID != "" && conv.ExternalChannelID != externalChannelID {
			if err := setConversationChannelTx(ctx, tx, conv.ID, externalChannelID); err != nil {
				return Conversation{}, err
			}
			conv.ExternalChannelID = externalChannelID
		}
		return conv, nil
	}
	return insertConversation(ctx, tx, userID, externalChannelID, now)
}

// GetOrCreateActive returns the user's OPEN conversation, creating one if
// none exists.
func (s *Conversations) GetOrCreateActive(ctx context.Context, userID int64) (Conversation, error) {
	var conv Conversation
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		var err error
		conv, err = getOrCreateActiveTx(ctx, tx, userID, "", s.clock().UTC())
		return err
	})
	return conv, err
}

// Close transitions an OPEN conversation to CLOSED. The row lock serializes
// the close against concurrent message saves touching last_message_at.
// Closing an already closed conversation returns ErrNotFound.
func (s *Conversations) Close(ctx context.Context, conversationID int64) (Conversation, error) {
	var conv Conversation
	err := utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := lockConversation(ctx, tx, conversationID); err != nil {
			return err
		}
		var err error
		conv, err = closeConversationTx(ctx, tx, conversationID, s.clock().UTC())
		return err
	})
	return conv, err
}

func (s *Conversations) Get(ctx context.Context, id int64) (Conversation, error) {
	return getConversation(ctx, s.db, id)
}

func (s *Conversations) List(ctx context.Context, status ConversationStatus, limit int) ([]Conversation, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return listConversations(ctx, s.db, status, limit)
}

// MessagePage is one page of conversation history, oldest first.
type MessagePage struct {
	Items      []Message `json:"items"`
	HasMore    bool      `json:"hasMore"`
	TotalCount int64     `json:"totalCount"`
}

// Messages pages backwards through history: beforeID 0 returns the newest
// page, a message id returns the page strictly older than it. Items come
// back in ascending id order for display.
func (s *Conversations) Messages(ctx context.Context, conversationID, beforeID int64, limit int) (MessagePage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, err := getConversation(ctx, s.db, conversationID); err != nil {
		return MessagePage{}, err
	}

	items, err := listMessages(ctx, s.db, conversationID, beforeID, limit+1)
	if err != nil {
		return MessagePage{}, err
	}
	page := MessagePage{HasMore: len(items) > limit}
	if page.HasMore {
		items = items[:limit]
	}
	// newest-first from the query; flip for display order
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	page.Items = items

	page.TotalCount, err = countMessages(ctx, s.db, conversationID)
	if err != nil {
		return MessagePage{}, err
	}
	return page, nil
}
