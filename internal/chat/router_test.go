package chat

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"omnichat-platform/internal/channel"
	"omnichat-platform/internal/connector"
)

type fakeRegistry struct {
	known map[string]User
	mu    sync.Mutex
}

func (f *fakeRegistry) key(id string, ct channel.Type) string { return string(ct) + ":" + id }

func (f *fakeRegistry) IsNewUser(_ context.Context, platformUserID string, ct channel.Type) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.known[f.key(platformUserID, ct)]
	return !ok, nil
}

func (f *fakeRegistry) RegisterOrGet(_ context.Context, msg *channel.CanonicalMessage) (User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := f.key(msg.PlatformUserID, msg.Channel)
	if u, ok := f.known[k]; ok {
		return u, nil
	}
	u := User{ID: int64(len(f.known) + 1), PlatformUserID: msg.PlatformUserID, ChannelType: msg.Channel}
	f.known[k] = u
	return u, nil
}

type fakeSink struct {
	saved    []Message
	outbound []Message
	err      error
}

func (f *fakeSink) SaveInbound(_ context.Context, user User, msg *channel.CanonicalMessage) (Message, error) {
	if f.err != nil {
		return Message{}, f.err
	}
	m := Message{
		ID:             int64(len(f.saved) + 1),
		ConversationID: user.ID,
		UserID:         user.ID,
		Content:        msg.Text,
		Direction:      DirectionInbound,
	}
	f.saved = append(f.saved, m)
	return m, nil
}

func (f *fakeSink) SaveOutbound(_ context.Context, conv Conversation, draft Message) (Message, error) {
	if f.err != nil {
		return Message{}, f.err
	}
	draft.ID = int64(len(f.outbound) + 100)
	draft.ConversationID = conv.ID
	draft.UserID = conv.UserID
	draft.Direction = DirectionOutbound
	draft.Status = StatusPending
	f.outbound = append(f.outbound, draft)
	return draft, nil
}

func (f *fakeSink) FinalizeOutbound(_ context.Context, messageID int64, delivered bool) (Message, error) {
	for i := range f.outbound {
		if f.outbound[i].ID != messageID {
			continue
		}
		if delivered {
			f.outbound[i].Status = StatusDelivered
		} else {
			f.outbound[i].Status = StatusFailed
		}
		return f.outbound[i], nil
	}
	return Message{}, ErrNotFound
}

type fakeDedup struct {
	seen map[string]bool
	err  error
}

func (f *fakeDedup) FirstDelivery(_ context.Context, ct channel.Type, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	k := string(ct) + ":" + id
	if f.seen[k] {
		return false, nil
	}
	f.seen[k] = true
	return true, nil
}

type fakeConnector struct {
	ct   channel.Type
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeConnector) ChannelType() channel.Type { return f.ct }

func (f *fakeConnector) Send(_ context.Context, recipientID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, recipientID+"|"+text)
	return f.err
}

func (f *fakeConnector) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// syncTasks runs submitted work inline so tests observe side effects
// without sleeping.
type syncTasks struct{ full bool }

func (s syncTasks) Submit(_ string, fn func(context.Context)) bool {
	if s.full {
		return false
	}
	fn(context.Background())
	return true
}

func newTestRouter(t *testing.T, conn *fakeConnector, dedup deduper, welcome WelcomeConfig) (*Router, *fakeRegistry, *fakeSink) {
	t.Helper()
	reg := &fakeRegistry{known: make(map[string]User)}
	sink := &fakeSink{}
	r := NewRouter(slog.Default(), reg, sink, dedup, connector.NewRegistry(conn), syncTasks{}, nil, welcome)
	return r, reg, sink
}

func inboundText(ct channel.Type, userID, msgID, text string) *channel.CanonicalMessage {
	return &channel.CanonicalMessage{
		Channel:           ct,
		PlatformUserID:    userID,
		PlatformMessageID: msgID,
		Text:              text,
		MessageType:       "text",
		Timestamp:         time.Now(),
	}
}

func TestRouter_FirstContactGetsWelcomeOnce(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeTelegram}
	r, _, sink := newTestRouter(t, conn, nil, WelcomeConfig{Enabled: true, Text: "welcome!"})

	if _, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m1", "hi")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if _, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m2", "again")); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if len(sink.saved) != 2 {
		t.Fatalf("expected both messages saved, got %d", len(sink.saved))
	}
	sent := conn.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected exactly one welcome, got %d", len(sent))
	}
	if sent[0] != "u1|welcome!" {
		t.Fatalf("unexpected welcome %q", sent[0])
	}
}

func TestRouter_WelcomePersistedAsOutbound(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeTelegram}
	r, _, sink := newTestRouter(t, conn, nil, WelcomeConfig{Enabled: true, Text: "welcome!"})

	if _, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m1", "hi")); err != nil {
		t.Fatalf("Route: %v", err)
	}

	if len(sink.outbound) != 1 {
		t.Fatalf("expected the welcome persisted as one outbound message, got %d", len(sink.outbound))
	}
	w := sink.outbound[0]
	if w.Direction != DirectionOutbound || w.Content != "welcome!" {
		t.Fatalf("unexpected outbound row %+v", w)
	}
	if w.Status != StatusDelivered {
		t.Fatalf("expected welcome finalized DELIVERED, got %s", w.Status)
	}
	if w.ConversationID != sink.saved[0].ConversationID {
		t.Fatalf("welcome landed in conversation %d, inbound in %d", w.ConversationID, sink.saved[0].ConversationID)
	}
}

func TestRouter_WelcomeDisabled(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeTelegram}
	r, _, _ := newTestRouter(t, conn, nil, WelcomeConfig{Enabled: false, Text: "welcome!"})

	if _, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m1", "hi")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	if got := conn.sentMessages(); len(got) != 0 {
		t.Fatalf("expected no welcome, got %v", got)
	}
}

func TestRouter_WelcomeFailureDoesNotFailRouting(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeTelegram, err: errors.New("telegram down")}
	r, _, sink := newTestRouter(t, conn, nil, WelcomeConfig{Enabled: true, Text: "welcome!"})

	if _, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m1", "hi")); err != nil {
		t.Fatalf("Route should not surface welcome failure: %v", err)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("expected message saved despite welcome failure")
	}
	if len(sink.outbound) != 1 || sink.outbound[0].Status != StatusFailed {
		t.Fatalf("expected welcome row finalized FAILED, got %+v", sink.outbound)
	}
}

func TestRouter_DiscordWelcomeGoesToOriginChannel(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeDiscord}
	r, _, _ := newTestRouter(t, conn, nil, WelcomeConfig{Enabled: true, Text: "hey"})

	msg := inboundText(channel.TypeDiscord, "u9", "m1", "hi")
	msg.ExternalChannelID = "chan-42"
	if _, err := r.Route(context.Background(), msg); err != nil {
		t.Fatalf("Route: %v", err)
	}

	sent := conn.sentMessages()
	if len(sent) != 1 || sent[0] != "chan-42|hey" {
		t.Fatalf("expected welcome to origin channel, got %v", sent)
	}
}

func TestRouter_DuplicateDeliveryDropped(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeTelegram}
	dedup := &fakeDedup{seen: make(map[string]bool)}
	r, _, sink := newTestRouter(t, conn, dedup, WelcomeConfig{})

	if _, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m1", "hi")); err != nil {
		t.Fatalf("Route: %v", err)
	}
	_, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m1", "hi"))
	if !errors.Is(err, ErrDuplicateDelivery) {
		t.Fatalf("expected ErrDuplicateDelivery, got %v", err)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("expected duplicate not saved, got %d saved", len(sink.saved))
	}
}

func TestRouter_DedupOutageAcceptsDelivery(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeTelegram}
	dedup := &fakeDedup{err: errors.New("redis down")}
	r, _, sink := newTestRouter(t, conn, dedup, WelcomeConfig{})

	if _, err := r.Route(context.Background(), inboundText(channel.TypeTelegram, "u1", "m1", "hi")); err != nil {
		t.Fatalf("dedup outage must not drop messages: %v", err)
	}
	if len(sink.saved) != 1 {
		t.Fatalf("expected message saved, got %d", len(sink.saved))
	}
}

func TestRouter_NilMessageRejected(t *testing.T) {
	conn := &fakeConnector{ct: channel.TypeTelegram}
	r, _, _ := newTestRouter(t, conn, nil, WelcomeConfig{})

	if _, err := r.Route(context.Background(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
