package call

import (
	"errors"
	"testing"
	"time"
)

func TestApplyTransition_ActivePinsStartedAtOnce(t *testing.T) {
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(30 * time.Second)

	c := Call{ID: 1, Status: StatusInitiated}
	c, err := applyTransition(c, StatusActive, t0)
	if err != nil {
		t.Fatalf("to ACTIVE: %v", err)
	}
	if c.StartedAt == nil || !c.StartedAt.Equal(t0) {
		t.Fatalf("expected started_at %v, got %v", t0, c.StartedAt)
	}

	// A second participant joining re-signals ACTIVE.
	c, err = applyTransition(c, StatusActive, t1)
	if err != nil {
		t.Fatalf("second ACTIVE: %v", err)
	}
	if !c.StartedAt.Equal(t0) {
		t.Fatalf("started_at moved to %v", c.StartedAt)
	}
}

func TestApplyTransition_TerminalSetsEndedAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, to := range []Status{StatusEnded, StatusRejected} {
		c, err := applyTransition(Call{ID: 1, Status: StatusRinging}, to, now)
		if err != nil {
			t.Fatalf("to %s: %v", to, err)
		}
		if c.EndedAt == nil || !c.EndedAt.Equal(now) {
			t.Fatalf("to %s: expected ended_at %v, got %v", to, now, c.EndedAt)
		}
	}
}

func TestApplyTransition_TerminalStateRejectsEverything(t *testing.T) {
	now := time.Now()
	for _, from := range []Status{StatusEnded, StatusRejected} {
		for _, to := range []Status{StatusInitiated, StatusRinging, StatusActive, StatusEnded, StatusRejected} {
			_, err := applyTransition(Call{ID: 1, Status: from}, to, now)
			if !errors.Is(err, ErrTerminalState) {
				t.Fatalf("%s -> %s: expected ErrTerminalState, got %v", from, to, err)
			}
		}
	}
}

func TestApplyTransition_UnknownStatusRejected(t *testing.T) {
	_, err := applyTransition(Call{Status: StatusInitiated}, Status("HOLDING"), time.Now())
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}
