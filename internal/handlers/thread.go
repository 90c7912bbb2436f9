package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"dm-service/internal/clients"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
	"dm-service/internal/ws"
)

// FlowInterestGated marks the origination flow that requires a shared
// interest between the two users.
const FlowInterestGated = "interest_gated"

// ThreadHandler owns thread resolution and the thread list view.
type ThreadHandler struct {
	threadRepo    repositories.ThreadRepository
	friendRepo    repositories.FriendRepository
	interestRepo  repositories.InterestRepository
	contentClient clients.ContentClient
	hub           *ws.Hub
	audit         *telemetry.AuditEmitter
	minShared     int
}

// NewThreadHandler builds a ThreadHandler.
func NewThreadHandler(threadRepo repositories.ThreadRepository, friendRepo repositories.FriendRepository, interestRepo repositories.InterestRepository, contentClient clients.ContentClient, hub *ws.Hub, audit *telemetry.AuditEmitter, minShared int) *ThreadHandler {
	return &ThreadHandler{
		threadRepo:    threadRepo,
		friendRepo:    friendRepo,
		interestRepo:  interestRepo,
		contentClient: contentClient,
		hub:           hub,
		audit:         audit,
		minShared:     minShared,
	}
}

// StartThread resolves or creates the single thread for the requester and a
// target. The target is either a counterpart user id or a context id that is
// first resolved to its author.
func (h *ThreadHandler) StartThread(c *gin.Context) {
	var req struct {
		CounterpartID int    `json:"counterpart_id"`
		ContextID     *int   `json:"context_id"`
		Flow          string `json:"flow"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CounterpartID == 0 && req.ContextID == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "counterpart_id or context_id required"})
		return
	}

	userID := c.GetInt("userID")

	counterpartID := req.CounterpartID
	if req.ContextID != nil {
		ownerID, err := h.contentClient.ResolveContextOwner(c.Request.Context(), *req.ContextID)
		if err != nil {
			if errors.Is(err, clients.ErrContextNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "context not found"})
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "failed to resolve context owner"})
			return
		}
		counterpartID = ownerID
	}

	if counterpartID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a thread with yourself"})
		return
	}

	if req.Flow == FlowInterestGated {
		if blocked, required, actual := h.gateBlocks(c.Request.Context(), userID, counterpartID); blocked {
			c.JSON(http.StatusForbidden, gin.H{
				"error":    "insufficient shared interests",
				"required": required,
				"actual":   actual,
			})
			return
		}
	}

	thread, err := h.threadRepo.CreateOrGetThread(c.Request.Context(), userID, counterpartID, req.ContextID)
	if err != nil {
		if errors.Is(err, repositories.ErrSelfThread) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a thread with yourself"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create thread"})
		return
	}

	// Address-book edge is best-effort; thread resolution already succeeded.
	if err := h.threadRepo.UpsertContact(c.Request.Context(), userID, counterpartID); err != nil {
		log.Printf("contact upsert failed for user=%d contact=%d: %v", userID, counterpartID, err)
	}

	status, err := h.friendRepo.GetStatus(c.Request.Context(), userID, counterpartID)
	if err != nil {
		status = models.StatusNone
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("thread %d resolved between %d and %d", thread.ID, userID, counterpartID),
		requestIDFromContext(c), userIDFromContext(c))

	c.JSON(http.StatusOK, gin.H{
		"thread_id":      thread.ID,
		"counterpart_id": counterpartID,
		"friend_status":  status,
	})
}

// gateBlocks applies the shared-interest precondition. Interest lookups fail
// open: only an explicit below-threshold count blocks the thread.
func (h *ThreadHandler) gateBlocks(ctx context.Context, userID, counterpartID int) (bool, int, int) {
	mine, err := h.interestRepo.GetUserInterests(ctx, userID)
	if err != nil {
		log.Printf("interest lookup failed for user=%d, gate skipped: %v", userID, err)
		return false, h.minShared, 0
	}
	theirs, err := h.interestRepo.GetUserInterests(ctx, counterpartID)
	if err != nil {
		log.Printf("interest lookup failed for user=%d, gate skipped: %v", counterpartID, err)
		return false, h.minShared, 0
	}

	set := make(map[string]struct{}, len(mine))
	for _, slug := range mine {
		set[slug] = struct{}{}
	}
	shared := 0
	for _, slug := range theirs {
		if _, ok := set[slug]; ok {
			shared++
		}
	}
	return shared < h.minShared, h.minShared, shared
}

// ListThreads returns the viewer's denormalized thread list.
func (h *ThreadHandler) ListThreads(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := h.threadRepo.ListThreads(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load threads"})
		return
	}

	counterpartIDs := make([]int, 0, len(summaries))
	for _, summary := range summaries {
		counterpartIDs = append(counterpartIDs, summary.CounterpartID)
	}

	statuses, err := h.friendRepo.GetStatusMap(c.Request.Context(), userID, counterpartIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load friend statuses"})
		return
	}

	for i := range summaries {
		summaries[i].FriendStatus = statuses[summaries[i].CounterpartID]
	}

	c.JSON(http.StatusOK, gin.H{"threads": summaries})
}
