package ws

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"dm-service/internal/middleware"
	"dm-service/internal/observability"
	"dm-service/internal/repositories"
)

// ThreadWebSocketHandler handles thread websocket connections.
type ThreadWebSocketHandler struct {
	hub        *Hub
	threadRepo repositories.ThreadRepository
	jwtSecret  []byte
}

// NewThreadWebSocketHandler constructs a ThreadWebSocketHandler.
func NewThreadWebSocketHandler(hub *Hub, threadRepo repositories.ThreadRepository, jwtSecret []byte) *ThreadWebSocketHandler {
	return &ThreadWebSocketHandler{hub: hub, threadRepo: threadRepo, jwtSecret: jwtSecret}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// typingFrame is the only client-to-server frame the read loop understands;
// anything else is discarded.
type typingFrame struct {
	Type     string `json:"type"`
	IsTyping bool   `json:"is_typing"`
}

// Handle upgrades the connection and registers the client with the hub.
func (h *ThreadWebSocketHandler) Handle(c *gin.Context) {
	threadID, err := strconv.Atoi(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	ctx, span := otel.Tracer("dm-service/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := c.GetHeader("Authorization")
	if token == "" {
		token = c.Query("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	userID, err := h.validateToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.threadRepo.IsParticipant(c.Request.Context(), threadID, userID)
	if err != nil || !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	h.hub.AddClient(threadID, conn, info)

	observability.IncWSActive("thread")
	observability.IncWSEvent("thread", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.threads", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   wsEventPayload(threadID, "ws_connect", info, 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	// Read loop: typing frames are broadcast, everything else discarded.
	// Cleans up hub state and emits disconnect events on close.
	go func() {
		var closeReason string
		defer func() {
			h.hub.RemoveClient(threadID, conn)
			observability.DecWSActive("thread")
			observability.IncWSEvent("thread", "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.threads", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   wsEventPayload(threadID, "ws_disconnect", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
			}, observability.BuildHeaders(requestID, traceID))
			conn.Close()
		}()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("thread", "ws_error")
					_ = observability.PublishEvent(ctx, "ws_events.threads", observability.EventEnvelope{
						EventType: "ws_events",
						EventName: "ws_error",
						Payload:   wsEventPayload(threadID, "ws_error", info, time.Since(info.ConnectedAt).Milliseconds(), closeReason),
					}, observability.BuildHeaders(requestID, traceID))
				}
				return
			}

			var frame typingFrame
			if err := json.Unmarshal(data, &frame); err == nil && frame.Type == "typing" {
				h.hub.BroadcastTyping(threadID, userID, frame.IsTyping)
			}
		}
	}()
}

func (h *ThreadWebSocketHandler) validateToken(header string) (int, error) {
	parts := strings.Split(header, " ")
	if len(parts) == 2 {
		return middleware.ValidateToken(h.jwtSecret, parts[1])
	}
	return 0, errInvalidToken
}

func wsEventPayload(threadID int, event string, info ConnInfo, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "thread",
			"resource_id": threadID,
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}
