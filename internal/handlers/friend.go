package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"dm-service/internal/repositories"
	"dm-service/internal/telemetry"
)

// FriendHandler exposes the friend request state machine.
type FriendHandler struct {
	friendRepo repositories.FriendRepository
	audit      *telemetry.AuditEmitter
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(friendRepo repositories.FriendRepository, audit *telemetry.AuditEmitter) *FriendHandler {
	return &FriendHandler{friendRepo: friendRepo, audit: audit}
}

// SendRequest creates a pending friend request. A reverse pending request is
// reported with an accept hint so the client redirects instead of retrying.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	var req struct {
		ToUser int `json:"to_user" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if req.ToUser == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot send a friend request to yourself"})
		return
	}

	request, err := h.friendRepo.SendRequest(c.Request.Context(), userID, req.ToUser)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadyFriends):
			c.JSON(http.StatusConflict, gin.H{"error": "already friends"})
		case errors.Is(err, repositories.ErrDuplicateRequest):
			c.JSON(http.StatusConflict, gin.H{"error": "request already pending"})
		case errors.Is(err, repositories.ErrReversePending):
			c.JSON(http.StatusConflict, gin.H{
				"error":  "counterpart already sent a request",
				"action": "accept",
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not send request"})
		}
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("friend request %d sent from %d to %d", request.ID, userID, req.ToUser),
		requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusCreated, request)
}

// AcceptRequest accepts a pending request addressed to the caller.
func (h *FriendHandler) AcceptRequest(c *gin.Context) {
	requestID, err := strconv.Atoi(c.Param("request_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	userID := c.GetInt("userID")
	request, err := h.friendRepo.AcceptRequest(c.Request.Context(), requestID, userID)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("friend request %d accepted", request.ID),
		requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"status": request.Status})
}

// DeclineRequest declines a pending request addressed to the caller.
func (h *FriendHandler) DeclineRequest(c *gin.Context) {
	requestID, err := strconv.Atoi(c.Param("request_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request id"})
		return
	}

	userID := c.GetInt("userID")
	request, err := h.friendRepo.DeclineRequest(c.Request.Context(), requestID, userID)
	if err != nil {
		h.writeLifecycleError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "INFO",
		fmt.Sprintf("friend request %d declined", request.ID),
		requestIDFromContext(c), userIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"status": request.Status})
}

// ListPendingRequests returns requests awaiting the caller's decision.
func (h *FriendHandler) ListPendingRequests(c *gin.Context) {
	userID := c.GetInt("userID")

	requests, err := h.friendRepo.ListPendingRequests(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load requests"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// GetStatus resolves the relationship between the caller and a counterpart.
func (h *FriendHandler) GetStatus(c *gin.Context) {
	counterpartID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	status, err := h.friendRepo.GetStatus(c.Request.Context(), userID, counterpartID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to resolve status"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// writeLifecycleError maps state machine failures. Wrong-caller failures stay
// generic so request ids cannot be probed.
func (h *FriendHandler) writeLifecycleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repositories.ErrRequestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "request not found"})
	case errors.Is(err, repositories.ErrNotPermitted):
		c.JSON(http.StatusForbidden, gin.H{"error": "not permitted"})
	case errors.Is(err, repositories.ErrRequestNotPending):
		c.JSON(http.StatusConflict, gin.H{"error": "request is not pending"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update request"})
	}
}
