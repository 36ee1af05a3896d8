package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"omnichat-platform/internal/channel"
)

// Telegram bot API update envelope, reduced to the fields we route.
// Ref: https://core.telegram.org/bots/api#update

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64          `json:"message_id"`
	From      *telegramUser  `json:"from"`
	Chat      *telegramChat  `json:"chat"`
	Date      int64          `json:"date"`
	Text      string         `json:"text"`
	Caption   string         `json:"caption"`
	Animation *telegramFile  `json:"animation"`
	Photo     []telegramFile `json:"photo"`
	Video     *telegramFile  `json:"video"`
	Document  *telegramFile  `json:"document"`
	Audio     *telegramFile  `json:"audio"`
	Voice     *telegramFile  `json:"voice"`
}

type telegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type telegramChat struct {
	ID int64 `json:"id"`
}

type telegramFile struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

func telegramParser(policy DocumentPolicy) Func {
	return func(raw json.RawMessage) (*channel.CanonicalMessage, error) {
		var upd telegramUpdate
		if err := json.Unmarshal(raw, &upd); err != nil {
			return nil, err
		}
		if upd.Message == nil {
			// Edits, channel posts, callback queries: not routed.
			return nil, nil
		}
		m := upd.Message
		if m.From == nil {
			return nil, errors.New("telegram message without from")
		}

		text := m.Text
		if text == "" {
			text = m.Caption
		}

		msgType := "text"
		var att *channel.Attachment

		switch {
		case m.Animation != nil:
			// Animated GIFs render as images on the dashboard.
			msgType = "image"
			att = &channel.Attachment{
				Ref:      m.Animation.FileID,
				Kind:     channel.AttachmentImage,
				Filename: m.Animation.FileName,
				Size:     m.Animation.FileSize,
			}
			text = placeholder(text, "[GIF]")
		case len(m.Photo) > 0:
			// Telegram sends every resolution; the largest is last.
			largest := m.Photo[len(m.Photo)-1]
			msgType = "image"
			att = &channel.Attachment{
				Ref:  largest.FileID,
				Kind: channel.AttachmentImage,
				Size: largest.FileSize,
			}
			text = placeholder(text, "[Photo]")
		case m.Video != nil:
			msgType = "video"
			att = &channel.Attachment{
				Ref:      m.Video.FileID,
				Kind:     channel.AttachmentVideo,
				Filename: m.Video.FileName,
				Size:     m.Video.FileSize,
			}
			text = placeholder(text, "[Video]")
		case m.Document != nil:
			// Images sent "as file" arrive as documents; reclassify by
			// MIME/extension so the dashboard previews them.
			kind := policy.Classify(m.Document.MimeType, m.Document.FileName)
			msgType = string(kind)
			att = &channel.Attachment{
				Ref:      m.Document.FileID,
				Kind:     kind,
				Filename: m.Document.FileName,
				Size:     m.Document.FileSize,
			}
			if kind == channel.AttachmentImage {
				text = placeholder(text, "[Photo]")
			} else {
				text = placeholder(text, "[Document]")
			}
		case m.Audio != nil:
			msgType = "audio"
			att = &channel.Attachment{
				Ref:      m.Audio.FileID,
				Kind:     channel.AttachmentAudio,
				Filename: m.Audio.FileName,
				Size:     m.Audio.FileSize,
			}
			text = placeholder(text, "[Audio]")
		case m.Voice != nil:
			msgType = "voice"
			att = &channel.Attachment{
				Ref:  m.Voice.FileID,
				Kind: channel.AttachmentAudio,
				Size: m.Voice.FileSize,
			}
			text = placeholder(text, "[Voice message]")
		default:
			text = placeholder(text, "[Non-text message]")
		}

		ts := time.Now()
		if m.Date > 0 {
			ts = time.Unix(m.Date, 0)
		}

		return &channel.CanonicalMessage{
			Channel:           channel.TypeTelegram,
			PlatformUserID:    fmt.Sprintf("%d", m.From.ID),
			PlatformMessageID: fmt.Sprintf("%d", m.MessageID),
			Text:              text,
			MessageType:       msgType,
			Timestamp:         ts,
			Username:          m.From.Username,
			FirstName:         m.From.FirstName,
			LastName:          m.From.LastName,
			Attachment:        att,
		}, nil
	}
}

func placeholder(text, fallback string) string {
	if text == "" {
		return fallback
	}
	return text
}
