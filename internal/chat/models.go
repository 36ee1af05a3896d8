package chat

import (
	"errors"
	"time"

	"omnichat-platform/internal/channel"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMissingRecipient means the conversation has no deliverable address,
	// e.g. a Discord conversation whose origin channel was never recorded.
	ErrMissingRecipient = errors.New("conversation has no recipient address")
)

type ConversationStatus string

const (
	ConversationOpen ConversationStatus = "OPEN"
	// ConversationPending marks a conversation parked for later follow-up.
	// No automatic flow produces it; staff tooling may.
	ConversationPending ConversationStatus = "PENDING"
	ConversationClosed  ConversationStatus = "CLOSED"
)

type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

type MessageStatus string

const (
	// StatusPending marks an outbound row reserved before platform delivery
	// was attempted.
	StatusPending MessageStatus = "PENDING"
	// StatusSent means the platform accepted the message; StatusRead means
	// the recipient saw it. Platforms in use do not report these today, so
	// current flows jump straight to DELIVERED.
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
	StatusFailed    MessageStatus = "FAILED"
)

// User is one platform identity. The same person on two platforms is two
// users; identity federation is out of scope.
type User struct {
	ID             int64        `json:"id"`
	PlatformUserID string       `json:"platform_user_id"`
	ChannelType    channel.Type `json:"channel_type"`
	Username       string       `json:"username"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	PhoneNumber    string       `json:"phone_number"`
	FirstContactAt time.Time    `json:"first_contact_at"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type Conversation struct {
	ID     int64              `json:"id"`
	UserID int64              `json:"user_id"`
	Status ConversationStatus `json:"status"`

	// ExternalChannelID is the platform-side reply address for channels
	// where the sender id is not directly addressable (Discord channel id).
	ExternalChannelID string `json:"external_channel_id,omitempty"`

	StartedAt     time.Time  `json:"started_at"`
	LastMessageAt time.Time  `json:"last_message_at"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`
}

type Message struct {
	ID                 int64         `json:"id"`
	ConversationID     int64         `json:"conversation_id"`
	UserID             int64         `json:"user_id"`
	PlatformMessageID  string        `json:"platform_message_id,omitempty"`
	Content            string        `json:"content"`
	MessageType        string        `json:"message_type"`
	Direction          Direction     `json:"direction"`
	Status             MessageStatus `json:"status"`
	AttachmentKey      string        `json:"attachment_key,omitempty"`
	AttachmentType     string        `json:"attachment_type,omitempty"`
	AttachmentFilename string        `json:"attachment_filename,omitempty"`
	AttachmentSize     int64         `json:"attachment_size,omitempty"`
	ReceivedAt         *time.Time    `json:"received_at,omitempty"`
	SentAt             *time.Time    `json:"sent_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
}
