package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"omnichat-platform/internal/channel"
	"omnichat-platform/internal/chat"
	"omnichat-platform/internal/connector"
	"omnichat-platform/internal/parser"
)

type stubRegistry struct{ known map[string]bool }

func (s *stubRegistry) IsNewUser(_ context.Context, id string, ct channel.Type) (bool, error) {
	return !s.known[string(ct)+":"+id], nil
}

func (s *stubRegistry) RegisterOrGet(_ context.Context, msg *channel.CanonicalMessage) (chat.User, error) {
	s.known[string(msg.Channel)+":"+msg.PlatformUserID] = true
	return chat.User{ID: 1, PlatformUserID: msg.PlatformUserID, ChannelType: msg.Channel}, nil
}

type stubSink struct{ count int }

func (s *stubSink) SaveInbound(context.Context, chat.User, *channel.CanonicalMessage) (chat.Message, error) {
	s.count++
	return chat.Message{ID: int64(s.count)}, nil
}

func (s *stubSink) SaveOutbound(_ context.Context, conv chat.Conversation, draft chat.Message) (chat.Message, error) {
	draft.ConversationID = conv.ID
	return draft, nil
}

func (s *stubSink) FinalizeOutbound(_ context.Context, messageID int64, _ bool) (chat.Message, error) {
	return chat.Message{ID: messageID}, nil
}

type stubDedup struct{ seen map[string]bool }

func (s *stubDedup) FirstDelivery(_ context.Context, ct channel.Type, id string) (bool, error) {
	k := string(ct) + ":" + id
	if s.seen[k] {
		return false, nil
	}
	s.seen[k] = true
	return true, nil
}

type inlineTasks struct{}

func (inlineTasks) Submit(_ string, fn func(context.Context)) bool {
	fn(context.Background())
	return true
}

func webhookFixture(t *testing.T, dedup *stubDedup) (*gin.Engine, *stubSink) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sink := &stubSink{}
	var router *chat.Router
	if dedup != nil {
		router = chat.NewRouter(slog.Default(), &stubRegistry{known: map[string]bool{}}, sink,
			dedup, connector.NewRegistry(), inlineTasks{}, nil, chat.WelcomeConfig{})
	} else {
		router = chat.NewRouter(slog.Default(), &stubRegistry{known: map[string]bool{}}, sink,
			nil, connector.NewRegistry(), inlineTasks{}, nil, chat.WelcomeConfig{})
	}

	h := WebhookHandlers{
		Log:    slog.Default(),
		Parser: parser.NewTable(slog.Default(), parser.Options{}),
		Router: router,
	}
	r := gin.New()
	r.POST("/webhooks/telegram", h.Receive(channel.TypeTelegram))
	return r, sink
}

const telegramWebhookBody = `{
  "message": {
    "message_id": 5,
    "from": {"id": 11, "username": "jdoe"},
    "date": 1700000000,
    "text": "hello"
  }
}`

func postWebhook(t *testing.T, r *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestWebhook_RoutesAndAcks(t *testing.T) {
	r, sink := webhookFixture(t, nil)

	w := postWebhook(t, r, telegramWebhookBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if sink.count != 1 {
		t.Fatalf("expected message routed, got %d", sink.count)
	}
}

func TestWebhook_GarbageStillAcks(t *testing.T) {
	r, sink := webhookFixture(t, nil)

	for _, body := range []string{"not json", `{"update_id": 1}`, ""} {
		w := postWebhook(t, r, body)
		if w.Code != http.StatusOK {
			t.Fatalf("body %q: expected 200, got %d", body, w.Code)
		}
	}
	if sink.count != 0 {
		t.Fatalf("expected nothing routed, got %d", sink.count)
	}
}

func TestWebhook_DuplicateAcksWithoutRouting(t *testing.T) {
	r, sink := webhookFixture(t, &stubDedup{seen: map[string]bool{}})

	if w := postWebhook(t, r, telegramWebhookBody); w.Code != http.StatusOK {
		t.Fatalf("first delivery: %d", w.Code)
	}
	w := postWebhook(t, r, telegramWebhookBody)
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate must still ack, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "duplicate") {
		t.Fatalf("expected duplicate status, got %s", w.Body.String())
	}
	if sink.count != 1 {
		t.Fatalf("expected one routed message, got %d", sink.count)
	}
}

func TestWebhook_MessengerVerify(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := WebhookHandlers{Log: slog.Default(), MessengerVerifyToken: "vt-1"}
	r := gin.New()
	r.GET("/webhooks/messenger", h.MessengerVerify)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/webhooks/messenger?hub.mode=subscribe&hub.verify_token=vt-1&hub.challenge=c123", nil))
	if w.Code != http.StatusOK || w.Body.String() != "c123" {
		t.Fatalf("expected challenge echoed, got %d %q", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet,
		"/webhooks/messenger?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=c123", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong token, got %d", w.Code)
	}
}
