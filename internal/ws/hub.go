package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"dm-service/internal/models"
	"dm-service/internal/observability"
)

// TypingExpiryMS is the receiver-side staleness timeout carried in typing
// events: clients clear a stale "true" after this long without a follow-up.
const TypingExpiryMS = 2000

// Hub maintains active websocket subscribers per thread. It is a side
// channel only: every durable event is broadcast after the store write has
// committed, and typing signals are never persisted.
type Hub struct {
	rooms    map[int]map[*websocket.Conn]bool
	connInfo map[int]map[*websocket.Conn]ConnInfo
	// writers serializes writes per connection; gorilla/websocket supports at
	// most one concurrent writer, and broadcasts run on handler goroutines.
	writers map[*websocket.Conn]*sync.Mutex
	mu      sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:    make(map[int]map[*websocket.Conn]bool),
		connInfo: make(map[int]map[*websocket.Conn]ConnInfo),
		writers:  make(map[*websocket.Conn]*sync.Mutex),
	}
}

// AddClient registers a websocket connection to a thread room.
func (h *Hub) AddClient(threadID int, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[threadID]; !ok {
		h.rooms[threadID] = make(map[*websocket.Conn]bool)
	}
	h.rooms[threadID][conn] = true
	if _, ok := h.connInfo[threadID]; !ok {
		h.connInfo[threadID] = make(map[*websocket.Conn]ConnInfo)
	}
	h.connInfo[threadID][conn] = info
	h.writers[conn] = &sync.Mutex{}
}

// RemoveClient removes a thread websocket connection.
func (h *Hub) RemoveClient(threadID int, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[threadID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.rooms, threadID)
		}
	}
	if infos, ok := h.connInfo[threadID]; ok {
		delete(infos, conn)
		if len(infos) == 0 {
			delete(h.connInfo, threadID)
		}
	}
	delete(h.writers, conn)
}

// BroadcastMessage sends a new message to all subscribers of its thread.
func (h *Hub) BroadcastMessage(threadID int, msg models.Message) {
	h.broadcast(threadID, models.ThreadEvent{Type: "message", Message: &msg})
}

// BroadcastDeletion notifies subscribers of a delete-for-all event.
func (h *Hub) BroadcastDeletion(threadID, messageID int) {
	h.broadcast(threadID, models.ThreadEvent{Type: "delete_for_all", MessageID: messageID})
}

// BroadcastRead notifies subscribers that a reader marked the thread read.
func (h *Hub) BroadcastRead(threadID, readerID, count int) {
	h.broadcast(threadID, models.ThreadEvent{Type: "read", UserID: readerID, Count: count})
}

// BroadcastTyping publishes an ephemeral typing signal; at-most-once, never
// retried, never stored.
func (h *Hub) BroadcastTyping(threadID, userID int, isTyping bool) {
	h.broadcast(threadID, models.ThreadEvent{
		Type:        "typing",
		UserID:      userID,
		IsTyping:    isTyping,
		ExpiresInMS: TypingExpiryMS,
	})
	observability.IncTypingEvent()
}

type broadcastTarget struct {
	conn    *websocket.Conn
	writeMu *sync.Mutex
}

func (h *Hub) broadcast(threadID int, event models.ThreadEvent) {
	h.mu.RLock()
	targets := make([]broadcastTarget, 0, len(h.rooms[threadID]))
	for conn := range h.rooms[threadID] {
		targets = append(targets, broadcastTarget{conn: conn, writeMu: h.writers[conn]})
	}
	h.mu.RUnlock()

	payload, _ := json.Marshal(event)
	for _, target := range targets {
		target.writeMu.Lock()
		err := target.conn.WriteMessage(websocket.TextMessage, payload)
		target.writeMu.Unlock()
		if err != nil {
			log.Printf("websocket write error: %v", err)
			target.conn.Close()
			h.publishWSError(threadID, target.conn, err)
			h.RemoveClient(threadID, target.conn)
		}
	}
}

func (h *Hub) publishWSError(threadID int, conn *websocket.Conn, err error) {
	info, ok := h.getConnInfo(threadID, conn)
	if !ok {
		return
	}

	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "thread",
			"resource_id": threadID,
			"event":       "ws_error",
			"conn_id":     info.ConnID,
			"duration_ms": time.Since(info.ConnectedAt).Milliseconds(),
			"reason":      err.Error(),
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}

	headers := observability.BuildHeaders(info.RequestID, info.TraceID)
	_ = observability.PublishEvent(context.Background(), "ws_events.threads", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_error",
		Payload:   payload,
	}, headers)
	observability.IncWSEvent("thread", "ws_error")
}

func (h *Hub) getConnInfo(threadID int, conn *websocket.Conn) (ConnInfo, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if infos, ok := h.connInfo[threadID]; ok {
		info, exists := infos[conn]
		return info, exists
	}
	return ConnInfo{}, false
}
