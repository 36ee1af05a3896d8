package channel

import (
	"encoding/json"
	"time"
)

// Type identifies which external chat platform an event, user, parser or
// connector concerns. The set is closed: adding a platform means adding a
// constant here plus a parser and connector table entry.
type Type string

const (
	TypeTelegram  Type = "TELEGRAM"
	TypeMessenger Type = "MESSENGER"
	TypeDiscord   Type = "DISCORD"
)

func (t Type) Valid() bool {
	switch t {
	case TypeTelegram, TypeMessenger, TypeDiscord:
		return true
	default:
		return false
	}
}

// AttachmentKind categorizes a media attachment independent of platform.
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentVideo    AttachmentKind = "video"
	AttachmentAudio    AttachmentKind = "audio"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment describes media referenced by an inbound event. Ref is a
// platform-level handle (Telegram file_id, Messenger CDN URL); the actual
// bytes are transferred to the blob store after the message is persisted.
type Attachment struct {
	Ref      string
	Kind     AttachmentKind
	Filename string
	Size     int64
}

// CanonicalMessage is the platform-independent representation of one inbound
// chat event. It is ephemeral: parsers produce it, the router consumes it,
// nothing persists it as-is.
//
// Raw keeps the original webhook payload for diagnostics only; no business
// logic may depend on it.
type CanonicalMessage struct {
	Channel           Type
	PlatformUserID    string
	PlatformMessageID string
	Text              string
	MessageType       string
	Timestamp         time.Time

	Username  string
	FirstName string
	LastName  string
	Phone     string

	// ExternalChannelID is set by platforms whose reply target differs from
	// the sender identity (Discord text channels). The router stores it on
	// the conversation at ingestion.
	ExternalChannelID string

	Attachment *Attachment

	Raw json.RawMessage
}
