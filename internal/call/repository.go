package call

import (
	"context"
	"database/sql"
	"errors"
)

const callColumns = `id, conversation_id, room_id, room_url, status, initiated_by, initiated_at, started_at, ended_at`

func scanCall(scan func(dest ...any) error) (Call, error) {
	var c Call
	err := scan(
		&c.ID,
		&c.ConversationID,
		&c.RoomID,
		&c.RoomURL,
		&c.Status,
		&c.InitiatedBy,
		&c.InitiatedAt,
		&c.StartedAt,
		&c.EndedAt,
	)
	return c, err
}

// lockConversationRow serializes call operations per conversation. The row
// contents are irrelevant; only the lock matters.
func lockConversationRow(ctx context.Context, tx *sql.Tx, conversationID int64) error {
	const q = `
SELECT id
FROM conversations
WHERE id = $1
FOR UPDATE
`
	var id int64
	if err := tx.QueryRowContext(ctx, q, conversationID).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func insertCall(ctx context.Context, tx *sql.Tx, c Call) (Call, error) {
	const q = `
INSERT INTO calls (conversation_id, room_id, room_url, status, initiated_by, initiated_at)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING ` + callColumns + `
`
	return scanCall(tx.QueryRowContext(ctx, q,
		c.ConversationID,
		c.RoomID,
		c.RoomURL,
		c.Status,
		c.InitiatedBy,
		c.InitiatedAt,
	).Scan)
}

// findActiveCallTx returns the newest not-yet-finished call for the
// conversation, locked for update.
func findActiveCallTx(ctx context.Context, tx *sql.Tx, conversationID int64) (Call, bool, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE conversation_id = $1 AND status IN ('INITIATED','RINGING','ACTIVE')
ORDER BY initiated_at DESC
LIMIT 1
FOR UPDATE
`
	c, err := scanCall(tx.QueryRowContext(ctx, q, conversationID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, err
	}
	return c, true, nil
}

func findActiveCall(ctx context.Context, db *sql.DB, conversationID int64) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE conversation_id = $1 AND status IN ('INITIATED','RINGING','ACTIVE')
ORDER BY initiated_at DESC
LIMIT 1
`
	c, err := scanCall(db.QueryRowContext(ctx, q, conversationID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func lockCall(ctx context.Context, tx *sql.Tx, id int64) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE id = $1
FOR UPDATE
`
	c, err := scanCall(tx.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func updateCallTx(ctx context.Context, tx *sql.Tx, c Call) (Call, error) {
	const q = `
UPDATE calls
SET status = $2, started_at = $3, ended_at = $4
WHERE id = $1
RETURNING ` + callColumns + `
`
	return scanCall(tx.QueryRowContext(ctx, q, c.ID, c.Status, c.StartedAt, c.EndedAt).Scan)
}

func getCall(ctx context.Context, db *sql.DB, id int64) (Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE id = $1
`
	c, err := scanCall(db.QueryRowContext(ctx, q, id).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

// findByRoomID tries an exact match first, then a case-insensitive one.
// Conference URLs get pasted around and lose their casing on the way.
func findByRoomID(ctx context.Context, db *sql.DB, roomID string) (Call, error) {
	const exact = `
SELECT ` + callColumns + `
FROM calls
WHERE room_id = $1
`
	c, err := scanCall(db.QueryRowContext(ctx, exact, roomID).Scan)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Call{}, err
	}

	const fold = `
SELECT ` + callColumns + `
FROM calls
WHERE LOWER(room_id) = LOWER($1)
ORDER BY initiated_at DESC
LIMIT 1
`
	c, err = scanCall(db.QueryRowContext(ctx, fold, roomID).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	return c, nil
}

func listCallsByConversation(ctx context.Context, db *sql.DB, conversationID int64) ([]Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE conversation_id = $1
ORDER BY initiated_at DESC
`
	rows, err := db.QueryContext(ctx, q, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
