package parser

import (
	"encoding/json"
	"errors"
	"time"

	"omnichat-platform/internal/channel"
)

// Discord MESSAGE_CREATE event, as forwarded by the gateway bridge.
// Ref: https://discord.com/developers/docs/resources/message

type discordMessage struct {
	ID          string              `json:"id"`
	ChannelID   string              `json:"channel_id"`
	Author      *discordUser        `json:"author"`
	Content     string              `json:"content"`
	Timestamp   string              `json:"timestamp"`
	Attachments []discordAttachment `json:"attachments"`
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

type discordAttachment struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	URL         string `json:"url"`
}

func discordParser(policy DocumentPolicy) Func {
	return func(raw json.RawMessage) (*channel.CanonicalMessage, error) {
		var m discordMessage
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		if m.Author == nil {
			return nil, errors.New("discord message without author")
		}
		if m.Author.Bot {
			// Our own outbound messages echo back through the gateway.
			return nil, nil
		}
		if m.ChannelID == "" {
			return nil, errors.New("discord message without channel id")
		}

		text := m.Content
		msgType := "text"
		var att *channel.Attachment

		if len(m.Attachments) > 0 {
			first := m.Attachments[0]
			kind := policy.Classify(first.ContentType, first.Filename)
			msgType = string(kind)
			att = &channel.Attachment{
				Ref:      first.URL,
				Kind:     kind,
				Filename: first.Filename,
				Size:     first.Size,
			}
			if text == "" {
				text = "[" + first.Filename + "]"
			}
		}
		if text == "" {
			text = "[Non-text message]"
		}

		ts := time.Now()
		if m.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339, m.Timestamp); err == nil {
				ts = parsed
			}
		}

		return &channel.CanonicalMessage{
			Channel:           channel.TypeDiscord,
			PlatformUserID:    m.Author.ID,
			PlatformMessageID: m.ID,
			Text:              text,
			MessageType:       msgType,
			Timestamp:         ts,
			Username:          m.Author.Username,
			FirstName:         m.Author.GlobalName,
			ExternalChannelID: m.ChannelID,
			Attachment:        att,
		}, nil
	}
}
