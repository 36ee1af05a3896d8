package parser

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"testing"

	"omnichat-platform/internal/channel"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	return NewTable(slog.Default(), Options{})
}

const telegramTextUpdate = `{
  "update_id": 10001,
  "message": {
    "message_id": 55,
    "from": {"id": 987654321, "username": "jdoe", "first_name": "Jane", "last_name": "Doe"},
    "chat": {"id": 987654321},
    "date": 1700000000,
    "text": "hello there"
  }
}`

func TestParse_TelegramText(t *testing.T) {
	msg := testTable(t).Parse(channel.TypeTelegram, json.RawMessage(telegramTextUpdate))
	if msg == nil {
		t.Fatalf("expected message")
	}
	if msg.Channel != channel.TypeTelegram {
		t.Fatalf("unexpected channel %q", msg.Channel)
	}
	if msg.PlatformUserID != "987654321" || msg.PlatformMessageID != "55" {
		t.Fatalf("unexpected identity %q/%q", msg.PlatformUserID, msg.PlatformMessageID)
	}
	if msg.Text != "hello there" || msg.MessageType != "text" {
		t.Fatalf("unexpected content %q (%q)", msg.Text, msg.MessageType)
	}
	if msg.FirstName != "Jane" || msg.LastName != "Doe" || msg.Username != "jdoe" {
		t.Fatalf("unexpected names %q %q %q", msg.FirstName, msg.LastName, msg.Username)
	}
	if msg.Timestamp.Unix() != 1700000000 {
		t.Fatalf("unexpected timestamp %v", msg.Timestamp)
	}
	if msg.Attachment != nil {
		t.Fatalf("unexpected attachment")
	}
}

func TestParse_Deterministic(t *testing.T) {
	tbl := testTable(t)
	a := tbl.Parse(channel.TypeTelegram, json.RawMessage(telegramTextUpdate))
	b := tbl.Parse(channel.TypeTelegram, json.RawMessage(telegramTextUpdate))
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("parsing the same payload twice produced different messages")
	}
}

func TestParse_TelegramPhotoPicksLargestAndSubstitutesPlaceholder(t *testing.T) {
	payload := `{
	  "message": {
	    "message_id": 56,
	    "from": {"id": 1},
	    "date": 1700000001,
	    "photo": [
	      {"file_id": "small", "file_size": 100},
	      {"file_id": "large", "file_size": 90000}
	    ]
	  }
	}`
	msg := testTable(t).Parse(channel.TypeTelegram, json.RawMessage(payload))
	if msg == nil {
		t.Fatalf("expected message")
	}
	if msg.Text != "[Photo]" {
		t.Fatalf("expected placeholder, got %q", msg.Text)
	}
	if msg.Attachment == nil || msg.Attachment.Ref != "large" {
		t.Fatalf("expected largest photo, got %+v", msg.Attachment)
	}
	if msg.Attachment.Kind != channel.AttachmentImage || msg.MessageType != "image" {
		t.Fatalf("expected image kind, got %+v", msg.Attachment)
	}
}

func TestParse_TelegramImageDocumentReclassified(t *testing.T) {
	payload := `{
	  "message": {
	    "message_id": 57,
	    "from": {"id": 1},
	    "date": 1700000002,
	    "document": {"file_id": "doc1", "file_name": "scan.PNG", "mime_type": "", "file_size": 5}
	  }
	}`
	msg := testTable(t).Parse(channel.TypeTelegram, json.RawMessage(payload))
	if msg == nil {
		t.Fatalf("expected message")
	}
	if msg.Attachment == nil || msg.Attachment.Kind != channel.AttachmentImage {
		t.Fatalf("expected extension fallback to image, got %+v", msg.Attachment)
	}
	if msg.Text != "[Photo]" {
		t.Fatalf("expected photo placeholder, got %q", msg.Text)
	}
}

func TestParse_TelegramPdfDocumentStaysDocument(t *testing.T) {
	payload := `{
	  "message": {
	    "message_id": 58,
	    "from": {"id": 1},
	    "date": 1700000003,
	    "document": {"file_id": "doc2", "file_name": "invoice.pdf", "mime_type": "application/pdf"}
	  }
	}`
	msg := testTable(t).Parse(channel.TypeTelegram, json.RawMessage(payload))
	if msg == nil || msg.Attachment == nil || msg.Attachment.Kind != channel.AttachmentDocument {
		t.Fatalf("expected document, got %+v", msg)
	}
	if msg.Text != "[Document]" {
		t.Fatalf("expected document placeholder, got %q", msg.Text)
	}
}

func TestParse_TelegramVoiceIsAudioKind(t *testing.T) {
	payload := `{
	  "message": {
	    "message_id": 59,
	    "from": {"id": 1},
	    "date": 1700000004,
	    "voice": {"file_id": "v1", "file_size": 900}
	  }
	}`
	msg := testTable(t).Parse(channel.TypeTelegram, json.RawMessage(payload))
	if msg == nil || msg.Attachment == nil {
		t.Fatalf("expected attachment")
	}
	if msg.MessageType != "voice" || msg.Attachment.Kind != channel.AttachmentAudio {
		t.Fatalf("voice should classify as audio, got %q/%q", msg.MessageType, msg.Attachment.Kind)
	}
	if msg.Text != "[Voice message]" {
		t.Fatalf("unexpected placeholder %q", msg.Text)
	}
}

func TestParse_TelegramWithoutMessageIsDropped(t *testing.T) {
	if msg := testTable(t).Parse(channel.TypeTelegram, json.RawMessage(`{"update_id": 1}`)); msg != nil {
		t.Fatalf("expected nil for update without message, got %+v", msg)
	}
}

func TestParse_TelegramWithoutSenderIsDropped(t *testing.T) {
	payload := `{"message": {"message_id": 60, "date": 1700000005, "text": "hi"}}`
	if msg := testTable(t).Parse(channel.TypeTelegram, json.RawMessage(payload)); msg != nil {
		t.Fatalf("expected nil for message without from, got %+v", msg)
	}
}

func TestParse_GarbageNeverPanics(t *testing.T) {
	tbl := testTable(t)
	for _, raw := range []string{`not json`, `[]`, `{"message": "string"}`, ``} {
		for _, ct := range tbl.Channels() {
			if msg := tbl.Parse(ct, json.RawMessage(raw)); msg != nil {
				t.Fatalf("expected nil for garbage on %s, got %+v", ct, msg)
			}
		}
	}
}

func TestParse_MessengerTextWithProfile(t *testing.T) {
	payload := `{
	  "object": "page",
	  "entry": [{"id": "page1", "time": 1700000000000, "messaging": [{
	    "sender": {"id": "psid-1"},
	    "recipient": {"id": "page1"},
	    "timestamp": 1700000000000,
	    "message": {"mid": "mid.1", "text": "need help"}
	  }]}]
	}`
	tbl := NewTable(slog.Default(), Options{
		MessengerProfile: func(psid string) (string, string, error) {
			if psid != "psid-1" {
				t.Fatalf("unexpected psid %q", psid)
			}
			return "John", "Smith", nil
		},
	})
	msg := tbl.Parse(channel.TypeMessenger, json.RawMessage(payload))
	if msg == nil {
		t.Fatalf("expected message")
	}
	if msg.PlatformUserID != "psid-1" || msg.PlatformMessageID != "mid.1" {
		t.Fatalf("unexpected identity %q/%q", msg.PlatformUserID, msg.PlatformMessageID)
	}
	if msg.FirstName != "John" || msg.LastName != "Smith" {
		t.Fatalf("expected profile enrichment, got %q %q", msg.FirstName, msg.LastName)
	}
}

func TestParse_MessengerAttachmentPlaceholder(t *testing.T) {
	payload := `{
	  "entry": [{"messaging": [{
	    "sender": {"id": "psid-2"},
	    "timestamp": 1700000001000,
	    "message": {"mid": "mid.2", "attachments": [{"type": "image", "payload": {"url": "https://cdn.example/x.jpg"}}]}
	  }]}]
	}`
	msg := testTable(t).Parse(channel.TypeMessenger, json.RawMessage(payload))
	if msg == nil {
		t.Fatalf("expected message")
	}
	if msg.Text != "[Message with image]" {
		t.Fatalf("unexpected placeholder %q", msg.Text)
	}
	if msg.Attachment == nil || msg.Attachment.Ref != "https://cdn.example/x.jpg" {
		t.Fatalf("unexpected attachment %+v", msg.Attachment)
	}
}

func TestParse_MessengerDeliveryEventIsDropped(t *testing.T) {
	payload := `{"entry": [{"messaging": []}]}`
	if msg := testTable(t).Parse(channel.TypeMessenger, json.RawMessage(payload)); msg != nil {
		t.Fatalf("expected nil, got %+v", msg)
	}
}

func TestParse_DiscordTextCapturesReplyChannel(t *testing.T) {
	payload := `{
	  "id": "111",
	  "channel_id": "chan-9",
	  "author": {"id": "u-7", "username": "gamer", "global_name": "Gamer"},
	  "content": "hi staff",
	  "timestamp": "2023-11-14T22:13:20Z"
	}`
	msg := testTable(t).Parse(channel.TypeDiscord, json.RawMessage(payload))
	if msg == nil {
		t.Fatalf("expected message")
	}
	if msg.ExternalChannelID != "chan-9" {
		t.Fatalf("expected reply channel captured, got %q", msg.ExternalChannelID)
	}
	if msg.Username != "gamer" || msg.FirstName != "Gamer" {
		t.Fatalf("unexpected names %q %q", msg.Username, msg.FirstName)
	}
}

func TestParse_DiscordBotEchoIsDropped(t *testing.T) {
	payload := `{"id": "112", "channel_id": "chan-9", "author": {"id": "bot", "bot": true}, "content": "welcome"}`
	if msg := testTable(t).Parse(channel.TypeDiscord, json.RawMessage(payload)); msg != nil {
		t.Fatalf("expected bot message dropped, got %+v", msg)
	}
}

func TestParse_DiscordAttachmentClassifiedByMIME(t *testing.T) {
	payload := `{
	  "id": "113",
	  "channel_id": "chan-9",
	  "author": {"id": "u-7", "username": "gamer"},
	  "content": "",
	  "attachments": [{"id": "a1", "filename": "clip.mp4", "content_type": "video/mp4", "size": 1024, "url": "https://cdn.discordapp.com/clip.mp4"}]
	}`
	msg := testTable(t).Parse(channel.TypeDiscord, json.RawMessage(payload))
	if msg == nil || msg.Attachment == nil {
		t.Fatalf("expected attachment")
	}
	if msg.Attachment.Kind != channel.AttachmentVideo {
		t.Fatalf("expected video kind, got %q", msg.Attachment.Kind)
	}
	if msg.Text != "[clip.mp4]" {
		t.Fatalf("unexpected placeholder %q", msg.Text)
	}
}
