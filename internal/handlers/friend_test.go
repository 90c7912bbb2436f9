package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"dm-service/internal/mocks"
	"dm-service/internal/models"
	"dm-service/internal/repositories"
)

func setupFriendRouter(handler *FriendHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.POST("/friends/requests", handler.SendRequest)
	r.GET("/friends/requests", handler.ListPendingRequests)
	r.POST("/friends/requests/:request_id/accept", handler.AcceptRequest)
	r.POST("/friends/requests/:request_id/decline", handler.DeclineRequest)
	r.GET("/friends/status/:user_id", handler.GetStatus)
	return r
}

func TestSendRequestSuccess(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("SendRequest", mock.Anything, 1, 2).Return(models.FriendRequest{ID: 7, FromUser: 1, ToUser: 2, Status: models.RequestPending}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewBufferString(`{"to_user":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	friendRepo.AssertExpectations(t)
}

func TestSendRequestToSelf(t *testing.T) {
	handler := NewFriendHandler(new(mocks.FriendRepositoryMock), nil)
	router := setupFriendRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewBufferString(`{"to_user":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendRequestAlreadyFriends(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("SendRequest", mock.Anything, 1, 2).Return(models.FriendRequest{}, repositories.ErrAlreadyFriends).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewBufferString(`{"to_user":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	friendRepo.AssertExpectations(t)
}

func TestSendRequestReversePendingHintsAccept(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("SendRequest", mock.Anything, 1, 2).Return(models.FriendRequest{}, repositories.ErrReversePending).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewBufferString(`{"to_user":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "accept", resp["action"])
	friendRepo.AssertExpectations(t)
}

func TestSendRequestDuplicate(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("SendRequest", mock.Anything, 1, 2).Return(models.FriendRequest{}, repositories.ErrDuplicateRequest).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests", bytes.NewBufferString(`{"to_user":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	friendRepo.AssertExpectations(t)
}

func TestAcceptRequestSuccess(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("AcceptRequest", mock.Anything, 9, 1).Return(models.FriendRequest{ID: 9, FromUser: 2, ToUser: 1, Status: models.RequestAccepted}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests/9/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, string(models.RequestAccepted), resp["status"])
	friendRepo.AssertExpectations(t)
}

func TestAcceptRequestWrongCaller(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("AcceptRequest", mock.Anything, 9, 1).Return(models.FriendRequest{}, repositories.ErrNotPermitted).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests/9/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	friendRepo.AssertExpectations(t)
}

func TestAcceptRequestNotFound(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("AcceptRequest", mock.Anything, 9, 1).Return(models.FriendRequest{}, repositories.ErrRequestNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests/9/accept", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	friendRepo.AssertExpectations(t)
}

func TestDeclineRequestNotPending(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("DeclineRequest", mock.Anything, 9, 1).Return(models.FriendRequest{}, repositories.ErrRequestNotPending).Once()

	req := httptest.NewRequest(http.MethodPost, "/friends/requests/9/decline", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	friendRepo.AssertExpectations(t)
}

func TestListPendingRequests(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("ListPendingRequests", mock.Anything, 1).Return([]models.FriendRequest{{ID: 3, FromUser: 2, ToUser: 1, Status: models.RequestPending}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/friends/requests", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	friendRepo.AssertExpectations(t)
}

func TestGetStatus(t *testing.T) {
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewFriendHandler(friendRepo, nil)
	router := setupFriendRouter(handler)

	friendRepo.On("GetStatus", mock.Anything, 1, 2).Return(models.StatusPendingReceived, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/friends/status/2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, string(models.StatusPendingReceived), resp["status"])
	friendRepo.AssertExpectations(t)
}
