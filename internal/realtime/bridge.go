package realtime

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Bridge pipes Redis pub/sub traffic into the local hub. Every API instance
// runs one; together with RedisPublisher it makes fan-out work across
// instances.
type Bridge struct {
	rdb *redis.Client
	hub *Hub
	log *slog.Logger
}

func NewBridge(rdb *redis.Client, hub *Hub, log *slog.Logger) *Bridge {
	return &Bridge{rdb: rdb, hub: hub, log: log}
}

// Run blocks until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.PSubscribe(ctx, topicPattern)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			conversationID, ok := parseConversationID(msg.Channel)
			if !ok {
				b.log.Warn("unroutable topic", "topic", msg.Channel)
				continue
			}
			b.hub.Broadcast(conversationID, msg.Channel, []byte(msg.Payload))
		}
	}
}
