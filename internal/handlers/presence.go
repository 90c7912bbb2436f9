package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"dm-service/internal/observability"
	"dm-service/internal/presence"
	"dm-service/internal/repositories"
	"dm-service/internal/ws"
)

// PresenceHandler exposes heartbeats, derived presence and the typing side
// channel.
type PresenceHandler struct {
	tracker    presence.Tracker
	threadRepo repositories.ThreadRepository
	hub        *ws.Hub
}

// NewPresenceHandler builds a PresenceHandler.
func NewPresenceHandler(tracker presence.Tracker, threadRepo repositories.ThreadRepository, hub *ws.Hub) *PresenceHandler {
	return &PresenceHandler{tracker: tracker, threadRepo: threadRepo, hub: hub}
}

// Heartbeat upserts the caller's last-seen timestamp. Clients call this on a
// fixed interval while active.
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	userID := c.GetInt("userID")

	if err := h.tracker.Heartbeat(c.Request.Context(), userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record heartbeat"})
		return
	}
	observability.IncPresenceHeartbeat()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetPresence returns derived online/last-seen state for the requested users.
func (h *PresenceHandler) GetPresence(c *gin.Context) {
	raw := c.Query("user_ids")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_ids required"})
		return
	}

	parts := strings.Split(raw, ",")
	userIDs := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id list"})
			return
		}
		userIDs = append(userIDs, id)
	}

	statuses, err := h.tracker.GetPresence(c.Request.Context(), userIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load presence"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"presence": statuses})
}

// BroadcastTyping publishes an ephemeral typing signal to thread subscribers.
// Fire-and-forget: no persistence, no retry.
func (h *PresenceHandler) BroadcastTyping(c *gin.Context) {
	threadID, err := strconv.Atoi(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	var req struct {
		IsTyping *bool `json:"is_typing" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	member, err := h.threadRepo.IsParticipant(c.Request.Context(), threadID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify membership"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
		return
	}

	h.hub.BroadcastTyping(threadID, userID, *req.IsTyping)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
