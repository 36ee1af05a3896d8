package connector

import (
	"context"
	"errors"
	"fmt"

	"omnichat-platform/internal/channel"
)

var (
	// ErrTransport wraps failures talking to a platform API. Handlers map it
	// to a 502-class response; the message row is finalized as FAILED.
	ErrTransport = errors.New("platform transport failure")

	// ErrUnsupportedChannel is returned when no connector is registered for
	// a channel type.
	ErrUnsupportedChannel = errors.New("no connector for channel")
)

// Connector delivers an outbound text message to one platform.
type Connector interface {
	ChannelType() channel.Type
	Send(ctx context.Context, recipientID, text string) error
}

// Registry holds the connectors built at startup. Lookup is read-only after
// construction, so no locking.
type Registry struct {
	connectors map[channel.Type]Connector
}

func NewRegistry(cs ...Connector) *Registry {
	r := &Registry{connectors: make(map[channel.Type]Connector, len(cs))}
	for _, c := range cs {
		r.connectors[c.ChannelType()] = c
	}
	return r
}

func (r *Registry) Get(ct channel.Type) (Connector, error) {
	c, ok := r.connectors[ct]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, ct)
	}
	return c, nil
}

func (r *Registry) Channels() []channel.Type {
	out := make([]channel.Type, 0, len(r.connectors))
	for ct := range r.connectors {
		out = append(out, ct)
	}
	return out
}
