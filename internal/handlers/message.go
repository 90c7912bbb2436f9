package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dm-service/internal/clients"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

// MessageHandler owns the message lifecycle: creation, read receipts and soft
// deletion.
type MessageHandler struct {
	threadRepo        repositories.ThreadRepository
	messageRepo       repositories.MessageRepository
	entitlementClient clients.EntitlementClient
	storageClient     clients.StorageClient
	hub               *ws.Hub
	audit             *telemetry.AuditEmitter
	maxAudioSeconds   int
	baseVideoBytes    int64
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(threadRepo repositories.ThreadRepository, messageRepo repositories.MessageRepository, entitlementClient clients.EntitlementClient, storageClient clients.StorageClient, hub *ws.Hub, audit *telemetry.AuditEmitter, maxAudioSeconds int, baseVideoBytes int64) *MessageHandler {
	return &MessageHandler{
		threadRepo:        threadRepo,
		messageRepo:       messageRepo,
		entitlementClient: entitlementClient,
		storageClient:     storageClient,
		hub:               hub,
		audit:             audit,
		maxAudioSeconds:   maxAudioSeconds,
		baseVideoBytes:    baseVideoBytes,
	}
}

type postMessageRequest struct {
	Kind            models.MessageKind `json:"kind" binding:"required"`
	Content         string             `json:"content"`
	Data            string             `json:"data"`
	DurationSeconds *int               `json:"duration_seconds"`
	SizeBytes       *int64             `json:"size_bytes"`
	Latitude        *float64           `json:"latitude"`
	Longitude       *float64           `json:"longitude"`
}

// PostMessage validates, stores and broadcasts a new message. The broadcast
// happens only after the insert has committed.
func (h *MessageHandler) PostMessage(c *gin.Context) {
	threadID, err := strconv.Atoi(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}

	userID := c.GetInt("userID")
	thread, err := h.threadRepo.GetThread(c.Request.Context(), threadID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "thread not found"})
		return
	}
	if !thread.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
		return
	}

	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown content kind"})
		return
	}

	msg := models.Message{
		ThreadID:        threadID,
		SenderID:        userID,
		Kind:            req.Kind,
		Content:         req.Content,
		DurationSeconds: req.DurationSeconds,
		SizeBytes:       req.SizeBytes,
		Latitude:        req.Latitude,
		Longitude:       req.Longitude,
	}

	if ok := h.validateKind(c, userID, &msg, req); !ok {
		return
	}

	// For non-text kinds with an inline payload the blob goes to storage
	// first; a failed write aborts creation so no message ever references a
	// missing blob.
	if req.Kind != models.KindText && req.Kind != models.KindLocation && req.Data != "" {
		data, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid base64 payload"})
			return
		}
		url, err := h.storageClient.StoreBinary(c.Request.Context(), data, string(req.Kind))
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to store attachment"})
			return
		}
		msg.Content = url
	}

	if msg.Content == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload required"})
		return
	}

	created, err := h.messageRepo.CreateMessage(c.Request.Context(), msg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	h.hub.BroadcastMessage(threadID, created)
	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("message %d created in thread %d", created.ID, threadID),
		requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusCreated, created)
}

// validateKind enforces kind-specific boundary constraints. Entitlement
// lookups degrade to the base video limit on failure; only an explicit
// over-limit result rejects the message.
func (h *MessageHandler) validateKind(c *gin.Context, userID int, msg *models.Message, req postMessageRequest) bool {
	switch req.Kind {
	case models.KindText:
		if req.Content == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text content required"})
			return false
		}
	case models.KindAudio:
		if req.DurationSeconds == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_seconds required for audio"})
			return false
		}
		if *req.DurationSeconds > h.maxAudioSeconds {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":       "audio duration exceeds limit",
				"max_seconds": h.maxAudioSeconds,
			})
			return false
		}
	case models.KindVideo:
		if req.SizeBytes == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size_bytes required for video"})
			return false
		}
		limit := h.baseVideoBytes
		entitlement, err := h.entitlementClient.GetEntitlement(c.Request.Context(), userID)
		if err != nil {
			log.Printf("entitlement lookup failed for user=%d, base video limit applies: %v", userID, err)
		} else if entitlement.MaxVideoBytes > 0 {
			limit = entitlement.MaxVideoBytes
		}
		if *req.SizeBytes > limit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "video size exceeds limit",
				"max_bytes": limit,
			})
			return false
		}
	case models.KindLocation:
		if req.Latitude == nil || req.Longitude == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "latitude and longitude required for location"})
			return false
		}
		if msg.Content == "" {
			msg.Content = fmt.Sprintf("%f,%f", *req.Latitude, *req.Longitude)
		}
	}
	return true
}

// GetThreadMessages returns messages for a thread filtered for the viewer.
func (h *MessageHandler) GetThreadMessages(c *gin.Context) {
	threadID, err := strconv.Atoi(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
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

	msgs, err := h.messageRepo.GetMessagesForUser(c.Request.Context(), threadID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	rendered := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		rendered = append(rendered, m.Rendered())
	}

	c.JSON(http.StatusOK, gin.H{"messages": rendered})
}

// MarkThreadRead stamps read receipts on every unread message the caller did
// not send. Safe to call redundantly.
func (h *MessageHandler) MarkThreadRead(c *gin.Context) {
	threadID, err := strconv.Atoi(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
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

	count, err := h.messageRepo.MarkThreadRead(c.Request.Context(), threadID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark thread read"})
		return
	}

	if count > 0 {
		h.hub.BroadcastRead(threadID, userID, count)
	}
	c.JSON(http.StatusOK, gin.H{"count_marked": count})
}

// DeleteMessage soft-deletes a message for the caller or for everyone.
// Everyone-scope is sender-only and gated on the entitlement flag; lookup
// failure denies, never grants.
func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	threadID, messageID, ok := parseIDs(c)
	if !ok {
		return
	}

	scope := models.DeletionScope(c.DefaultQuery("scope", string(models.ScopeSelf)))
	if !scope.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid deletion scope"})
		return
	}

	userID := c.GetInt("userID")
	thread, err := h.threadRepo.GetThread(c.Request.Context(), threadID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrThreadNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "thread not found"})
		return
	}
	if !thread.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
		return
	}

	msg, err := h.messageRepo.GetMessage(c.Request.Context(), messageID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, repositories.ErrMessageNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": "message not found"})
		return
	}
	if msg.ThreadID != threadID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message does not belong to thread"})
		return
	}

	if scope == models.ScopeEveryone {
		if msg.SenderID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
			return
		}
		entitlement, err := h.entitlementClient.GetEntitlement(c.Request.Context(), userID)
		if err != nil {
			log.Printf("entitlement lookup failed for user=%d, delete-for-everyone denied: %v", userID, err)
			c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
			return
		}
		if !entitlement.CanDeleteForEveryone {
			c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
			return
		}
	}

	changed, err := h.messageRepo.SoftDeleteMessage(c.Request.Context(), messageID, userID, scope)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not delete message"})
		return
	}

	if changed && scope == models.ScopeEveryone {
		h.hub.BroadcastDeletion(threadID, messageID)
		h.audit.Emit(c.Request.Context(), "INFO",
			fmt.Sprintf("message %d deleted for everyone in thread %d", messageID, threadID),
			requestIDFromContext(c), userIDFromContext(c))
	}

	// A repeated call on an already-deleted message is absorbed as success.
	c.Status(http.StatusNoContent)
}

func parseIDs(c *gin.Context) (int, int, bool) {
	threadID, err := strconv.Atoi(c.Param("thread_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return 0, 0, false
	}
	msgID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, 0, false
	}
	return threadID, msgID, true
}
