package parser

import (
	"encoding/json"
	"log/slog"

	"omnichat-platform/internal/channel"
)

// Func decodes one platform's webhook envelope into a canonical message.
// A nil message with a nil error means the payload is valid but carries
// nothing routable (unsupported event kind); an error means the envelope
// itself could not be decoded. The table swallows both the same way.
type Func func(raw json.RawMessage) (*channel.CanonicalMessage, error)

// ProfileLookup resolves display names for platforms whose events carry only
// an opaque sender id (Messenger PSIDs). Best-effort: errors leave the name
// fields empty.
type ProfileLookup func(platformUserID string) (firstName, lastName string, err error)

// Table is the closed channel-type → decoder dispatch table, built once at
// startup. Adding a platform means adding a channel.Type constant and a
// table entry here.
type Table struct {
	parsers map[channel.Type]Func
	log     *slog.Logger
}

// Options tunes per-platform decoding behavior.
type Options struct {
	// DocumentPolicy decides how document-flavored media is bucketed.
	// Zero value falls back to DefaultDocumentPolicy.
	DocumentPolicy DocumentPolicy

	// MessengerProfile enriches Messenger messages with sender names.
	// Nil disables enrichment.
	MessengerProfile ProfileLookup
}

func NewTable(log *slog.Logger, opts Options) *Table {
	if opts.DocumentPolicy.isZero() {
		opts.DocumentPolicy = DefaultDocumentPolicy()
	}
	return &Table{
		log: log,
		parsers: map[channel.Type]Func{
			channel.TypeTelegram:  telegramParser(opts.DocumentPolicy),
			channel.TypeMessenger: messengerParser(opts.MessengerProfile),
			channel.TypeDiscord:   discordParser(opts.DocumentPolicy),
		},
	}
}

// Parse normalizes a raw webhook payload. It never fails toward the caller:
// unprocessable payloads return nil after logging, because webhook senders
// expect a success acknowledgement regardless of what we made of the event.
func (t *Table) Parse(ct channel.Type, raw json.RawMessage) *channel.CanonicalMessage {
	fn, ok := t.parsers[ct]
	if !ok {
		t.log.Warn("no parser for channel", "channel", ct)
		return nil
	}
	msg, err := fn(raw)
	if err != nil {
		t.log.Warn("webhook payload not parseable", "channel", ct, "err", err)
		return nil
	}
	if msg == nil {
		t.log.Debug("webhook payload carries no routable message", "channel", ct)
		return nil
	}
	msg.Raw = raw
	return msg
}

// Channels lists the channel types the table can decode.
func (t *Table) Channels() []channel.Type {
	out := make([]channel.Type, 0, len(t.parsers))
	for ct := range t.parsers {
		out = append(out, ct)
	}
	return out
}
