package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"omnichat-platform/internal/channel"
)

// Messenger page webhook envelope.
// Ref: https://developers.facebook.com/docs/messenger-platform/webhooks

type messengerWebhook struct {
	Object string           `json:"object"`
	Entry  []messengerEntry `json:"entry"`
}

type messengerEntry struct {
	ID        string               `json:"id"`
	Time      int64                `json:"time"`
	Messaging []messengerMessaging `json:"messaging"`
}

type messengerMessaging struct {
	Sender    *messengerPeer    `json:"sender"`
	Recipient *messengerPeer    `json:"recipient"`
	Timestamp int64             `json:"timestamp"`
	Message   *messengerMessage `json:"message"`
}

type messengerPeer struct {
	ID string `json:"id"`
}

type messengerMessage struct {
	MID         string                `json:"mid"`
	Text        string                `json:"text"`
	Attachments []messengerAttachment `json:"attachments"`
}

type messengerAttachment struct {
	Type    string `json:"type"` // image, video, audio, file, template, fallback
	Payload struct {
		URL string `json:"url"`
	} `json:"payload"`
}

func messengerParser(profile ProfileLookup) Func {
	return func(raw json.RawMessage) (*channel.CanonicalMessage, error) {
		var wh messengerWebhook
		if err := json.Unmarshal(raw, &wh); err != nil {
			return nil, err
		}
		if len(wh.Entry) == 0 || len(wh.Entry[0].Messaging) == 0 {
			// Delivery receipts and read events arrive on other envelope
			// shapes; not routed.
			return nil, nil
		}
		ev := wh.Entry[0].Messaging[0]
		if ev.Sender == nil || ev.Message == nil {
			return nil, errors.New("messenger event missing sender or message")
		}

		text := ev.Message.Text
		msgType := "text"
		var att *channel.Attachment

		if len(ev.Message.Attachments) > 0 {
			first := ev.Message.Attachments[0]
			kind := messengerAttachmentKind(first.Type)
			msgType = string(kind)
			att = &channel.Attachment{
				Ref:  first.Payload.URL,
				Kind: kind,
			}
			if text == "" {
				text = fmt.Sprintf("[Message with %s]", msgType)
			}
		}
		if text == "" {
			text = "[Unsupported message type]"
		}

		ts := time.Now()
		if ev.Timestamp > 0 {
			ts = time.UnixMilli(ev.Timestamp)
		}

		msg := &channel.CanonicalMessage{
			Channel:           channel.TypeMessenger,
			PlatformUserID:    ev.Sender.ID,
			PlatformMessageID: ev.Message.MID,
			Text:              text,
			MessageType:       msgType,
			Timestamp:         ts,
			Attachment:        att,
		}

		// Graph API profile lookup is best-effort; a failure leaves the
		// name fields empty and never fails the parse.
		if profile != nil {
			if first, last, err := profile(ev.Sender.ID); err == nil {
				msg.FirstName = first
				msg.LastName = last
			}
		}

		return msg, nil
	}
}

func messengerAttachmentKind(t string) channel.AttachmentKind {
	switch t {
	case "image":
		return channel.AttachmentImage
	case "video":
		return channel.AttachmentVideo
	case "audio":
		return channel.AttachmentAudio
	default:
		return channel.AttachmentDocument
	}
}
