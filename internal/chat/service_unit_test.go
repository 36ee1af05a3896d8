package chat

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"omnichat-platform/internal/channel"
)

// Validation-only tests: anything touching Postgres is exercised against a
// real database in integration environments.

type nopPublisher struct{}

func (nopPublisher) PublishMessage(context.Context, int64, Message) {}

func TestRegistry_IsNewUserValidation(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.IsNewUser(context.Background(), "", channel.TypeTelegram); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty id, got %v", err)
	}
	if _, err := r.IsNewUser(context.Background(), "u1", channel.Type("SMOKE_SIGNAL")); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for bad channel, got %v", err)
	}
}

func TestRegistry_RegisterOrGetValidation(t *testing.T) {
	r := NewRegistry(nil)

	if _, err := r.RegisterOrGet(context.Background(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil message, got %v", err)
	}
	if _, err := r.RegisterOrGet(context.Background(), &channel.CanonicalMessage{Channel: channel.TypeTelegram}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing platform user id, got %v", err)
	}
}

func TestBus_SaveInboundValidation(t *testing.T) {
	b := NewBus(nil, slog.Default(), nopPublisher{}, nil)

	if _, err := b.SaveInbound(context.Background(), User{ID: 1}, nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil message, got %v", err)
	}
}

func TestBus_SaveOutboundValidation(t *testing.T) {
	b := NewBus(nil, slog.Default(), nopPublisher{}, nil)

	_, err := b.SaveOutbound(context.Background(), Conversation{ID: 1, UserID: 2}, Message{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty draft, got %v", err)
	}
}
