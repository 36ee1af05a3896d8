package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Blob is one stored media object.
type Blob struct {
	Key         string
	ContentType string
	Filename    string
	Size        int64
	Data        []byte
	CreatedAt   time.Time
}

// Postgres stores attachment bytes in the media_blobs table. Support-chat
// media is small and low-volume; keeping it next to the messages avoids a
// second storage system to operate.
type Postgres struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, clock: time.Now}
}

// Upload stores or replaces the object under key.
func (s *Postgres) Upload(ctx context.Context, key, contentType, filename string, data []byte) error {
	if key == "" {
		return fmt.Errorf("%w: object key required", ErrInvalidArgument)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty object", ErrInvalidArgument)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	const q = `
INSERT INTO media_blobs (object_key, content_type, filename, size_bytes, data, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (object_key)
DO UPDATE SET content_type = EXCLUDED.content_type,
              filename = EXCLUDED.filename,
              size_bytes = EXCLUDED.size_bytes,
              data = EXCLUDED.data
`
	_, err := s.db.ExecContext(ctx, q, key, contentType, filename, int64(len(data)), data, s.clock().UTC())
	return err
}

// Get loads the object under key.
func (s *Postgres) Get(ctx context.Context, key string) (Blob, error) {
	const q = `
SELECT object_key, content_type, filename, size_bytes, data, created_at
FROM media_blobs
WHERE object_key = $1
`
	var b Blob
	err := s.db.QueryRowContext(ctx, q, key).Scan(
		&b.Key,
		&b.ContentType,
		&b.Filename,
		&b.Size,
		&b.Data,
		&b.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Blob{}, ErrNotFound
		}
		return Blob{}, err
	}
	return b, nil
}
