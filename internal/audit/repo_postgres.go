package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the audit_events table. Append-only: no
// update or delete statements exist in this file on purpose.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_staff_id, conversation_id, call_id, room_id, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.Type,
		e.ActorStaffID,
		e.ConversationID,
		e.CallID,
		e.RoomID,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	return err
}
