package call

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrTerminalState rejects transitions out of ENDED or REJECTED. A
	// finished call stays finished; callers wanting a new call initiate one.
	ErrTerminalState = errors.New("call is in a terminal state")
)

type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusRinging   Status = "RINGING"
	StatusActive    Status = "ACTIVE"
	StatusEnded     Status = "ENDED"
	StatusRejected  Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusInitiated, StatusRinging, StatusActive, StatusEnded, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusEnded || s == StatusRejected
}

// Call is one conference room handed to a conversation. The room lives on
// an external conference server; this row tracks only the lifecycle.
type Call struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	RoomID         string     `json:"room_id"`
	RoomURL        string     `json:"room_url"`
	Status         Status     `json:"status"`
	InitiatedBy    string     `json:"initiated_by"`
	InitiatedAt    time.Time  `json:"initiated_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
}

// applyTransition moves a call to a new status. Pure: timestamps come from
// the caller's clock. started_at and ended_at are set exactly once, on the
// first transition that makes them meaningful.
func applyTransition(c Call, to Status, now time.Time) (Call, error) {
	if !to.Valid() {
		return Call{}, fmt.Errorf("%w: unknown status %q", ErrInvalidArgument, to)
	}
	if c.Status.Terminal() {
		return Call{}, fmt.Errorf("%w: %s call cannot become %s", ErrTerminalState, c.Status, to)
	}

	c.Status = to
	if to == StatusActive && c.StartedAt == nil {
		t := now
		c.StartedAt = &t
	}
	if to.Terminal() && c.EndedAt == nil {
		t := now
		c.EndedAt = &t
	}
	return c, nil
}
