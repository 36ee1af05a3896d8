package chat

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"omnichat-platform/internal/channel"
)

// NOTE: This repository assumes the tables in db/schema.sql exist:
// - users with UNIQUE (platform_user_id, channel_type)
// - conversations with a partial unique index on (user_id) WHERE status = 'OPEN'
// - messages
//
// Both constraints are the authoritative guards; the FOR UPDATE locks below
// only serialize the common path.

const userColumns = `id, platform_user_id, channel_type, username, first_name, last_name, phone_number, first_contact_at, created_at, updated_at`

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(
		&u.ID,
		&u.PlatformUserID,
		&u.ChannelType,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PhoneNumber,
		&u.FirstContactAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func findUserByPlatformID(ctx context.Context, db *sql.DB, platformUserID string, ct channel.Type) (User, bool, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE platform_user_id = $1 AND channel_type = $2
`
	u, err := scanUser(db.QueryRowContext(ctx, q, platformUserID, ct))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return u, true, nil
}

func getUser(ctx context.Context, db *sql.DB, id int64) (User, error) {
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
`
	u, err := scanUser(db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// insertUserIfAbsent races safely: on conflict with an existing identity the
// insert is a no-op and the caller re-selects the winner's row.
func insertUserIfAbsent(ctx context.Context, db *sql.DB, u User) (User, bool, error) {
	const q = `
INSERT INTO users (platform_user_id, channel_type, username, first_name, last_name, phone_number, first_contact_at, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$7,$7)
ON CONFLICT ON CONSTRAINT users_platform_identity DO NOTHING
RETURNING ` + userColumns + `
`
	row := db.QueryRowContext(ctx, q, u.PlatformUserID, u.ChannelType, u.Username, u.FirstName, u.LastName, u.PhoneNumber, u.FirstContactAt)
	inserted, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, false, nil
		}
		return User{}, false, err
	}
	return inserted, true, nil
}

func lockUser(ctx context.Context, tx *sql.Tx, userID int64) (User, error) {
	// Lock the user row to serialize concurrent conversation creation for
	// the same sender.
	const q = `
SELECT ` + userColumns + `
FROM users
WHERE id = $1
FOR UPDATE
`
	var u User
	if err := tx.QueryRowContext(ctx, q, userID).Scan(
		&u.ID,
		&u.PlatformUserID,
		&u.ChannelType,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PhoneNumber,
		&u.FirstContactAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

const conversationColumns = `id, user_id, status, external_channel_id, started_at, last_message_at, closed_at`

func scanConversation(scan func(dest ...any) error) (Conversation, error) {
	var c Conversation
	err := scan(
		&c.ID,
		&c.UserID,
		&c.Status,
		&c.ExternalChannelID,
		&c.StartedAt,
		&c.LastMessageAt,
		&c.ClosedAt,
	)
	return c, err
}

func findOpenConversationTx(ctx context.Context, tx *sql.Tx, userID int64) (Conversation, bool, error) {
	const q = `
SELECT ` + conversationColumns + `
FROM conversations
WHERE user_id = $1 AND status = 'OPEN'
`
	c, err := scanConversation(tx.QueryRowContext(ctx, q, userID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, false, nil
		}
		return Conversation{}, false, err
	}
	return c, true, nil
}

func insertConversation(ctx context.Context, tx *sql.Tx, userID int64, externalChannelID string, now time.Time) (Conversation, error) {
	const q = `
INSERT INTO conversations (user_id, status, external_channel_id, started_at, last_message_at)
VALUES ($1, 'OPEN', $2, $3, $3)
RETURNING ` + conversationColumns + `
`
	return scanConversation(tx.QueryRowContext(ctx, q, userID, externalChannelID, now).Scan)
}

func getConversation(ctx context.Context, db *sql.DB, id int64) (Conversation, error) {
	const q = `
SELECT ` + conversationColumns + `
FROM conversations
WHERE id = $1
`
	c, err := scanConversation(db.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return c, nil
}

func lockConversation(ctx context.Context, tx *sql.Tx, id int64) (Conversation, error) {
	const q = `
SELECT ` + conversationColumns + `
FROM conversations
WHERE id = $1
FOR UPDATE
`
	c, err := scanConversation(tx.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return c, nil
}

func listConversations(ctx context.Context, db *sql.DB, status ConversationStatus, limit int) ([]Conversation, error) {
	const q = `
SELECT ` + conversationColumns + `
FROM conversations
WHERE ($1 = '' OR status = $1)
ORDER BY last_message_at DESC
LIMIT $2
`
	rows, err := db.QueryContext(ctx, q, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Conversation, 0, limit)
	for rows.Next() {
		c, err := scanConversation(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func setConversationChannelTx(ctx context.Context, tx *sql.Tx, id int64, externalChannelID string) error {
	const q = `
UPDATE conversations
SET external_channel_id = $2
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, q, id, externalChannelID)
	return err
}

func touchConversationTx(ctx context.Context, tx *sql.Tx, id int64, at time.Time) error {
	const q = `
UPDATE conversations
SET last_message_at = $2
WHERE id = $1
`
	_, err := tx.ExecContext(ctx, q, id, at)
	return err
}

func touchConversation(ctx context.Context, db *sql.DB, id int64, at time.Time) error {
	const q = `
UPDATE conversations
SET last_message_at = $2
WHERE id = $1
`
	_, err := db.ExecContext(ctx, q, id, at)
	return err
}

func closeConversationTx(ctx context.Context, tx *sql.Tx, id int64, at time.Time) (Conversation, error) {
	const q = `
UPDATE conversations
SET status = 'CLOSED', closed_at = $2
WHERE id = $1 AND status = 'OPEN'
RETURNING ` + conversationColumns + `
`
	c, err := scanConversation(tx.QueryRowContext(ctx, q, id, at).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, err
	}
	return c, nil
}

const messageColumns = `id, conversation_id, user_id, platform_message_id, content, message_type, direction, status,
       attachment_key, attachment_type, attachment_filename, attachment_size, received_at, sent_at, created_at`

func scanMessage(scan func(dest ...any) error) (Message, error) {
	var m Message
	err := scan(
		&m.ID,
		&m.ConversationID,
		&m.UserID,
		&m.PlatformMessageID,
		&m.Content,
		&m.MessageType,
		&m.Direction,
		&m.Status,
		&m.AttachmentKey,
		&m.AttachmentType,
		&m.AttachmentFilename,
		&m.AttachmentSize,
		&m.ReceivedAt,
		&m.SentAt,
		&m.CreatedAt,
	)
	return m, err
}

func insertMessageTx(ctx context.Context, tx *sql.Tx, m Message) (Message, error) {
	const q = `
INSERT INTO messages (conversation_id, user_id, platform_message_id, content, message_type, direction, status,
                      attachment_key, attachment_type, attachment_filename, attachment_size, received_at, sent_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
RETURNING ` + messageColumns + `
`
	return scanMessage(tx.QueryRowContext(ctx, q,
		m.ConversationID,
		m.UserID,
		m.PlatformMessageID,
		m.Content,
		m.MessageType,
		m.Direction,
		m.Status,
		m.AttachmentKey,
		m.AttachmentType,
		m.AttachmentFilename,
		m.AttachmentSize,
		m.ReceivedAt,
		m.SentAt,
		m.CreatedAt,
	).Scan)
}

func getMessage(ctx context.Context, db *sql.DB, id int64) (Message, error) {
	const q = `
SELECT ` + messageColumns + `
FROM messages
WHERE id = $1
`
	m, err := scanMessage(db.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}

// listMessages returns the newest messages first, optionally only those
// older than beforeID (0 means start from the newest).
func listMessages(ctx context.Context, db *sql.DB, conversationID, beforeID int64, limit int) ([]Message, error) {
	const q = `
SELECT ` + messageColumns + `
FROM messages
WHERE conversation_id = $1 AND ($2 = 0 OR id < $2)
ORDER BY id DESC
LIMIT $3
`
	rows, err := db.QueryContext(ctx, q, conversationID, beforeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Message, 0, limit)
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func countMessages(ctx context.Context, db *sql.DB, conversationID int64) (int64, error) {
	const q = `SELECT COUNT(*) FROM messages WHERE conversation_id = $1`
	var n int64
	if err := db.QueryRowContext(ctx, q, conversationID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func setMessageStatus(ctx context.Context, db *sql.DB, id int64, status MessageStatus, sentAt *time.Time) (Message, error) {
	const q = `
UPDATE messages
SET status = $2, sent_at = COALESCE($3, sent_at)
WHERE id = $1
RETURNING ` + messageColumns + `
`
	m, err := scanMessage(db.QueryRowContext(ctx, q, id, status, sentAt).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Message{}, ErrNotFound
		}
		return Message{}, err
	}
	return m, nil
}

func setMessageAttachment(ctx context.Context, db *sql.DB, id int64, key, kind, filename string, size int64) error {
	const q = `
UPDATE messages
SET attachment_key = $2, attachment_type = $3, attachment_filename = $4, attachment_size = $5
WHERE id = $1
`
	_, err := db.ExecContext(ctx, q, id, key, kind, filename, size)
	return err
}
