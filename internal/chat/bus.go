package chat

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"omnichat-platform/internal/channel"
	"omnichat-platform/pkg/utils"
)

// Publisher fans a stored message out to live subscribers. Implementations
// must not fail the write path: delivery is best-effort.
type Publisher interface {
	PublishMessage(ctx context.Context, conversationID int64, m Message)
}

// FileFetcher downloads attachment bytes from a platform by its opaque ref.
// Platform file refs expire; fetching moves the bytes into our storage.
type FileFetcher interface {
	FetchFile(ctx context.Context, ref string) (filename string, data []byte, err error)
}

// BlobStore persists attachment bytes under an object key.
type BlobStore interface {
	Upload(ctx context.Context, key, contentType, filename string, data []byte) error
}

// Bus is the single write path for messages. Everything that lands in a
// conversation, inbound or outbound, goes through here so persistence,
// attachment capture and fan-out stay in one place.
type Bus struct {
	db        *sql.DB
	log       *slog.Logger
	clock     func() time.Time
	publisher Publisher
	blobs     BlobStore
	fetchers  map[channel.Type]FileFetcher
}

func NewBus(db *sql.DB, log *slog.Logger, publisher Publisher, blobs BlobStore) *Bus {
	return &Bus{
		db:        db,
		log:       log,
		clock:     time.Now,
		publisher: publisher,
		blobs:     blobs,
		fetchers:  make(map[channel.Type]FileFetcher),
	}
}

// RegisterFetcher wires a platform file downloader. Channels without one
// keep the platform's own ref (usually a public CDN URL) as attachment key.
func (b *Bus) RegisterFetcher(ct channel.Type, f FileFetcher) {
	b.fetchers[ct] = f
}

// SaveInbound persists one canonical inbound message into the sender's OPEN
// conversation, creating the conversation if needed. The message row commits
// before attachment transfer and fan-out: losing media or a live update is
// acceptable, losing the message is not.
func (b *Bus) SaveInbound(ctx context.Context, user User, msg *channel.CanonicalMessage) (Message, error) {
	if msg == nil {
		return Message{}, fmt.Errorf("%w: nil message", ErrInvalidArgument)
	}

	now := b.clock().UTC()
	receivedAt := msg.Timestamp.UTC()

	draft := Message{
		UserID:            user.ID,
		PlatformMessageID: msg.PlatformMessageID,
		Content:           msg.Text,
		MessageType:       msg.MessageType,
		Direction:         DirectionInbound,
		Status:            StatusDelivered,
		ReceivedAt:        &receivedAt,
		CreatedAt:         now,
	}
	if msg.Attachment != nil {
		draft.AttachmentKey = msg.Attachment.Ref
		draft.AttachmentType = string(msg.Attachment.Kind)
		draft.AttachmentFilename = msg.Attachment.Filename
		draft.AttachmentSize = msg.Attachment.Size
	}

	var saved Message
	err := utils.WithTx(ctx, b.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := lockUser(ctx, tx, user.ID); err != nil {
			return err
		}
		conv, err := getOrCreateActiveTx(ctx, tx, user.ID, msg.ExternalChannelID, now)
		if err != nil {
			return err
		}
		draft.ConversationID = conv.ID
		saved, err = insertMessageTx(ctx, tx, draft)
		if err != nil {
			return err
		}
		return touchConversationTx(ctx, tx, conv.ID, now)
	})
	if err != nil {
		return Message{}, err
	}

	if msg.Attachment != nil {
		saved = b.transferAttachment(ctx, saved, msg)
	}
	b.publisher.PublishMessage(ctx, saved.ConversationID, saved)
	return saved, nil
}

// transferAttachment copies platform-held media into the blob store and
// repoints the message at the stored key. Best-effort: on failure the row
// keeps the platform ref and we log.
func (b *Bus) transferAttachment(ctx context.Context, m Message, msg *channel.CanonicalMessage) Message {
	fetcher, ok := b.fetchers[msg.Channel]
	if !ok || b.blobs == nil {
		return m
	}

	filename, data, err := fetcher.FetchFile(ctx, msg.Attachment.Ref)
	if err != nil {
		b.log.Warn("attachment fetch failed, keeping platform ref",
			"channel", msg.Channel, "message_id", m.ID, "err", err)
		return m
	}
	if m.AttachmentFilename != "" {
		filename = m.AttachmentFilename
	}

	key := fmt.Sprintf("conversations/%d/messages/%d/%s-%s", m.ConversationID, m.ID, uuid.NewString(), filename)
	if err := b.blobs.Upload(ctx, key, contentTypeFor(filename), filename, data); err != nil {
		b.log.Warn("attachment upload failed, keeping platform ref",
			"channel", msg.Channel, "message_id", m.ID, "err", err)
		return m
	}
	if err := setMessageAttachment(ctx, b.db, m.ID, key, m.AttachmentType, filename, int64(len(data))); err != nil {
		b.log.Warn("attachment repoint failed", "message_id", m.ID, "err", err)
		return m
	}

	m.AttachmentKey = key
	m.AttachmentFilename = filename
	m.AttachmentSize = int64(len(data))
	return m
}

// SaveOutbound reserves a PENDING row before any platform delivery attempt,
// so a crash mid-send leaves an auditable record instead of a silent gap.
// Callers finalize with FinalizeOutbound once the attempt resolves.
func (b *Bus) SaveOutbound(ctx context.Context, conv Conversation, draft Message) (Message, error) {
	if draft.Content == "" && draft.AttachmentKey == "" {
		return Message{}, fmt.Errorf("%w: outbound message needs content or attachment", ErrInvalidArgument)
	}

	draft.ConversationID = conv.ID
	draft.UserID = conv.UserID
	draft.Direction = DirectionOutbound
	draft.Status = StatusPending
	draft.CreatedAt = b.clock().UTC()
	if draft.MessageType == "" {
		draft.MessageType = "text"
	}

	var saved Message
	err := utils.WithTx(ctx, b.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		var err error
		saved, err = insertMessageTx(ctx, tx, draft)
		return err
	})
	if err != nil {
		return Message{}, err
	}
	return saved, nil
}

// AttachUpload stores uploaded bytes for an already-reserved outbound
// message and repoints the row at the stored key.
func (b *Bus) AttachUpload(ctx context.Context, m Message, kind, filename string, data []byte) (Message, error) {
	if b.blobs == nil {
		return Message{}, fmt.Errorf("%w: blob store not configured", ErrInvalidArgument)
	}
	if filename == "" || len(data) == 0 {
		return Message{}, fmt.Errorf("%w: filename and data required", ErrInvalidArgument)
	}

	key := fmt.Sprintf("conversations/%d/messages/%d/%s-%s", m.ConversationID, m.ID, uuid.NewString(), filename)
	if err := b.blobs.Upload(ctx, key, contentTypeFor(filename), filename, data); err != nil {
		return Message{}, err
	}
	if err := setMessageAttachment(ctx, b.db, m.ID, key, kind, filename, int64(len(data))); err != nil {
		return Message{}, err
	}

	m.AttachmentKey = key
	m.AttachmentType = kind
	m.AttachmentFilename = filename
	m.AttachmentSize = int64(len(data))
	return m, nil
}

// FinalizeOutbound records the delivery outcome and publishes the final row.
// Failed sends publish too: the dashboard shows the failure inline.
func (b *Bus) FinalizeOutbound(ctx context.Context, messageID int64, delivered bool) (Message, error) {
	now := b.clock().UTC()
	status := StatusFailed
	var sentAt *time.Time
	if delivered {
		status = StatusDelivered
		sentAt = &now
	}

	m, err := setMessageStatus(ctx, b.db, messageID, status, sentAt)
	if err != nil {
		return Message{}, err
	}
	if delivered {
		if err := touchConversation(ctx, b.db, m.ConversationID, now); err != nil {
			b.log.Warn("conversation touch failed", "conversation_id", m.ConversationID, "err", err)
		}
	}
	b.publisher.PublishMessage(ctx, m.ConversationID, m)
	return m, nil
}

// Message loads one message row.
func (b *Bus) Message(ctx context.Context, id int64) (Message, error) {
	return getMessage(ctx, b.db, id)
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
