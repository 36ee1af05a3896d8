package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxInboundSize = 512
	sendBuffer     = 64
)

// Frame is what subscribers receive: the topic the event was published on
// plus the event payload verbatim.
type Frame struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type client struct {
	conn           *websocket.Conn
	send           chan []byte
	conversationID int64
}

// Hub tracks live WebSocket subscribers per conversation. Subscribing with
// conversation id 0 receives every conversation's traffic (dashboard
// overview). Slow clients get dropped frames, not a stalled hub.
type Hub struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[int64]map[*client]struct{}
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		log:  log,
		subs: make(map[int64]map[*client]struct{}),
	}
}

// Register adopts an upgraded connection and pumps frames until it dies.
func (h *Hub) Register(conn *websocket.Conn, conversationID int64) {
	c := &client{
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		conversationID: conversationID,
	}

	h.mu.Lock()
	set, ok := h.subs[conversationID]
	if !ok {
		set = make(map[*client]struct{})
		h.subs[conversationID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if set, ok := h.subs[c.conversationID]; ok {
		if _, present := set[c]; present {
			delete(set, c)
			close(c.send)
			if len(set) == 0 {
				delete(h.subs, c.conversationID)
			}
		}
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// Broadcast delivers a frame to the conversation's subscribers and to the
// firehose subscribers. A full send buffer drops the frame for that client.
func (h *Hub) Broadcast(conversationID int64, topic string, payload []byte) {
	frame, err := json.Marshal(Frame{Topic: topic, Data: payload})
	if err != nil {
		h.log.Warn("frame marshal failed", "topic", topic, "err", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range []int64{conversationID, 0} {
		for c := range h.subs[id] {
			select {
			case c.send <- frame:
			default:
				h.log.Warn("slow subscriber, frame dropped",
					"conversation_id", c.conversationID, "topic", topic)
			}
		}
	}
}

// SubscriberCount reports live subscribers for a conversation.
func (h *Hub) SubscriberCount(conversationID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client frames; the socket is one-way. It exists to
// service pongs and to notice the peer going away.
func (h *Hub) readPump(c *client) {
	defer h.unregister(c)
	c.conn.SetReadLimit(maxInboundSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
