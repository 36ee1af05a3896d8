package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"omnichat-platform/internal/call"
	"omnichat-platform/internal/chat"
)

// Topic layout. Message and call traffic stay on separate topics so a
// dashboard can subscribe to chat without call signaling noise.
const topicPattern = "conversations.*"

func messageTopic(conversationID int64) string {
	return fmt.Sprintf("conversations.%d", conversationID)
}

func callTopic(conversationID int64) string {
	return fmt.Sprintf("conversations.%d.call", conversationID)
}

// parseConversationID extracts the conversation id from a topic name.
func parseConversationID(topic string) (int64, bool) {
	parts := strings.Split(topic, ".")
	if len(parts) < 2 || parts[0] != "conversations" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// RedisPublisher fans events out through Redis pub/sub so every API
// instance sees every event regardless of which one handled the write.
// Publishing is fire-and-forget: a Redis outage costs live updates, never
// the write that triggered them.
type RedisPublisher struct {
	rdb *redis.Client
	log *slog.Logger
}

func NewRedisPublisher(rdb *redis.Client, log *slog.Logger) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, log: log}
}

// PublishMessage satisfies chat.Publisher.
func (p *RedisPublisher) PublishMessage(ctx context.Context, conversationID int64, m chat.Message) {
	payload, err := json.Marshal(struct {
		Type    string       `json:"type"`
		Message chat.Message `json:"message"`
	}{Type: "message", Message: m})
	if err != nil {
		p.log.Warn("message event marshal failed", "message_id", m.ID, "err", err)
		return
	}
	p.publish(ctx, messageTopic(conversationID), payload)
}

// PublishCallEvent satisfies call.Publisher.
func (p *RedisPublisher) PublishCallEvent(ctx context.Context, conversationID int64, ev call.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Warn("call event marshal failed", "call_id", ev.CallID, "err", err)
		return
	}
	p.publish(ctx, callTopic(conversationID), payload)
}

func (p *RedisPublisher) publish(ctx context.Context, topic string, payload []byte) {
	if err := p.rdb.Publish(ctx, topic, payload).Err(); err != nil {
		p.log.Warn("event publish failed", "topic", topic, "err", err)
	}
}
