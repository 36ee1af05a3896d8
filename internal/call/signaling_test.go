package call

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	calls map[string]Call
}

func (f *fakeStore) ByRoomID(_ context.Context, roomID string) (Call, error) {
	for id, c := range f.calls {
		if strings.EqualFold(id, roomID) {
			return c, nil
		}
	}
	return Call{}, ErrNotFound
}

func (f *fakeStore) Transition(_ context.Context, callID int64, to Status) (Call, error) {
	for id, c := range f.calls {
		if c.ID != callID {
			continue
		}
		next, err := applyTransition(c, to, time.Now())
		if err != nil {
			return Call{}, err
		}
		f.calls[id] = next
		return next, nil
	}
	return Call{}, ErrNotFound
}

type captivePublisher struct {
	events []Event
}

func (p *captivePublisher) PublishCallEvent(_ context.Context, _ int64, ev Event) {
	p.events = append(p.events, ev)
}

func newSignalingFixture(status Status) (*Signaling, *fakeStore, *captivePublisher) {
	store := &fakeStore{calls: map[string]Call{
		"support-call-7-abc123de": {ID: 9, ConversationID: 7, RoomID: "support-call-7-abc123de", Status: status},
	}}
	pub := &captivePublisher{}
	return NewSignaling(slog.Default(), store, pub), store, pub
}

func TestSignaling_JoinActivatesAndBroadcasts(t *testing.T) {
	sig, store, pub := newSignalingFixture(StatusInitiated)

	if err := sig.Join(context.Background(), "support-call-7-abc123de", "customer-1"); err != nil {
		t.Fatalf("Join: %v", err)
	}

	c := store.calls["support-call-7-abc123de"]
	if c.Status != StatusActive || c.StartedAt == nil {
		t.Fatalf("expected ACTIVE with started_at, got %+v", c)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Type != "call_joined" || ev.CallID != 9 || ev.UserID != "customer-1" || ev.Status != StatusActive {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestSignaling_JoinToleratesRoomCaseDrift(t *testing.T) {
	sig, _, pub := newSignalingFixture(StatusInitiated)

	if err := sig.Join(context.Background(), "SUPPORT-CALL-7-ABC123DE", "customer-1"); err != nil {
		t.Fatalf("Join with case drift: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected broadcast despite case drift")
	}
}

func TestSignaling_LeaveEndsCall(t *testing.T) {
	sig, store, pub := newSignalingFixture(StatusActive)

	if err := sig.Leave(context.Background(), "support-call-7-abc123de", "customer-1"); err != nil {
		t.Fatalf("Leave: %v", err)
	}
	c := store.calls["support-call-7-abc123de"]
	if c.Status != StatusEnded || c.EndedAt == nil {
		t.Fatalf("expected ENDED with ended_at, got %+v", c)
	}
	if len(pub.events) != 1 || pub.events[0].Type != "call_ended" {
		t.Fatalf("expected call_ended event, got %+v", pub.events)
	}
}

func TestSignaling_UnknownRoomErrorsWithoutBroadcast(t *testing.T) {
	sig, _, pub := newSignalingFixture(StatusInitiated)

	err := sig.Join(context.Background(), "no-such-room", "customer-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no broadcast, got %+v", pub.events)
	}
}

func TestSignaling_JoinAfterEndIsRejected(t *testing.T) {
	sig, _, pub := newSignalingFixture(StatusEnded)

	err := sig.Join(context.Background(), "support-call-7-abc123de", "customer-1")
	if !errors.Is(err, ErrTerminalState) {
		t.Fatalf("expected ErrTerminalState, got %v", err)
	}
	if len(pub.events) != 0 {
		t.Fatalf("expected no broadcast for rejected join")
	}
}
