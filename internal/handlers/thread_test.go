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

	"dm-service/internal/clients"
	"dm-service/internal/mocks"
	"dm-service/internal/models"
)

func setupThreadRouter(handler *ThreadHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Next()
	})
	r.GET("/threads", handler.ListThreads)
	r.POST("/threads/start", handler.StartThread)
	return r
}

func TestStartThreadWithCounterpart(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewThreadHandler(threadRepo, friendRepo, new(mocks.InterestRepositoryMock), new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	threadRepo.On("CreateOrGetThread", mock.Anything, 1, 2, (*int)(nil)).Return(models.Thread{ID: 10, User1ID: 1, User2ID: 2}, nil).Once()
	threadRepo.On("UpsertContact", mock.Anything, 1, 2).Return(nil).Once()
	friendRepo.On("GetStatus", mock.Anything, 1, 2).Return(models.StatusFriends, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"counterpart_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(10), resp["thread_id"])
	assert.Equal(t, string(models.StatusFriends), resp["friend_status"])
	threadRepo.AssertExpectations(t)
	friendRepo.AssertExpectations(t)
}

func TestStartThreadResolvesContextOwner(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	friendRepo := new(mocks.FriendRepositoryMock)
	contentClient := new(mocks.ContentClientMock)
	handler := NewThreadHandler(threadRepo, friendRepo, new(mocks.InterestRepositoryMock), contentClient, nil, nil, 1)
	router := setupThreadRouter(handler)

	contextID := 99
	contentClient.On("ResolveContextOwner", mock.Anything, 99).Return(2, nil).Once()
	threadRepo.On("CreateOrGetThread", mock.Anything, 1, 2, &contextID).Return(models.Thread{ID: 11, User1ID: 1, User2ID: 2, ContextID: &contextID}, nil).Once()
	threadRepo.On("UpsertContact", mock.Anything, 1, 2).Return(nil).Once()
	friendRepo.On("GetStatus", mock.Anything, 1, 2).Return(models.StatusNone, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"context_id":99}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(2), resp["counterpart_id"])
	contentClient.AssertExpectations(t)
	threadRepo.AssertExpectations(t)
}

func TestStartThreadContextNotFound(t *testing.T) {
	contentClient := new(mocks.ContentClientMock)
	handler := NewThreadHandler(new(mocks.ThreadRepositoryMock), new(mocks.FriendRepositoryMock), new(mocks.InterestRepositoryMock), contentClient, nil, nil, 1)
	router := setupThreadRouter(handler)

	contentClient.On("ResolveContextOwner", mock.Anything, 42).Return(0, clients.ErrContextNotFound).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"context_id":42}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	contentClient.AssertExpectations(t)
}

func TestStartThreadContextLookupError(t *testing.T) {
	contentClient := new(mocks.ContentClientMock)
	handler := NewThreadHandler(new(mocks.ThreadRepositoryMock), new(mocks.FriendRepositoryMock), new(mocks.InterestRepositoryMock), contentClient, nil, nil, 1)
	router := setupThreadRouter(handler)

	contentClient.On("ResolveContextOwner", mock.Anything, 42).Return(0, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"context_id":42}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	contentClient.AssertExpectations(t)
}

func TestStartThreadWithSelf(t *testing.T) {
	handler := NewThreadHandler(new(mocks.ThreadRepositoryMock), new(mocks.FriendRepositoryMock), new(mocks.InterestRepositoryMock), new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"counterpart_id":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartThreadMissingTarget(t *testing.T) {
	handler := NewThreadHandler(new(mocks.ThreadRepositoryMock), new(mocks.FriendRepositoryMock), new(mocks.InterestRepositoryMock), new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartThreadInterestGateBlocks(t *testing.T) {
	interestRepo := new(mocks.InterestRepositoryMock)
	handler := NewThreadHandler(new(mocks.ThreadRepositoryMock), new(mocks.FriendRepositoryMock), interestRepo, new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	interestRepo.On("GetUserInterests", mock.Anything, 1).Return([]string{"plumbing"}, nil).Once()
	interestRepo.On("GetUserInterests", mock.Anything, 2).Return([]string{"roofing"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"counterpart_id":2,"flow":"interest_gated"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, float64(1), resp["required"])
	assert.Equal(t, float64(0), resp["actual"])
	interestRepo.AssertExpectations(t)
}

func TestStartThreadInterestGateFailsOpen(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	friendRepo := new(mocks.FriendRepositoryMock)
	interestRepo := new(mocks.InterestRepositoryMock)
	handler := NewThreadHandler(threadRepo, friendRepo, interestRepo, new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	interestRepo.On("GetUserInterests", mock.Anything, 1).Return(([]string)(nil), assert.AnError).Once()
	threadRepo.On("CreateOrGetThread", mock.Anything, 1, 2, (*int)(nil)).Return(models.Thread{ID: 12, User1ID: 1, User2ID: 2}, nil).Once()
	threadRepo.On("UpsertContact", mock.Anything, 1, 2).Return(nil).Once()
	friendRepo.On("GetStatus", mock.Anything, 1, 2).Return(models.StatusNone, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"counterpart_id":2,"flow":"interest_gated"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	interestRepo.AssertExpectations(t)
	threadRepo.AssertExpectations(t)
}

func TestStartThreadContactUpsertFailureIgnored(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewThreadHandler(threadRepo, friendRepo, new(mocks.InterestRepositoryMock), new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	threadRepo.On("CreateOrGetThread", mock.Anything, 1, 2, (*int)(nil)).Return(models.Thread{ID: 13, User1ID: 1, User2ID: 2}, nil).Once()
	threadRepo.On("UpsertContact", mock.Anything, 1, 2).Return(assert.AnError).Once()
	friendRepo.On("GetStatus", mock.Anything, 1, 2).Return(models.StatusNone, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/threads/start", bytes.NewBufferString(`{"counterpart_id":2}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	threadRepo.AssertExpectations(t)
}

func TestListThreadsMergesFriendStatus(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	friendRepo := new(mocks.FriendRepositoryMock)
	handler := NewThreadHandler(threadRepo, friendRepo, new(mocks.InterestRepositoryMock), new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	threadRepo.On("ListThreads", mock.Anything, 1).Return([]models.ThreadSummary{
		{ThreadID: 3, CounterpartID: 2, UnreadCount: 1},
		{ThreadID: 4, CounterpartID: 5},
	}, nil).Once()
	friendRepo.On("GetStatusMap", mock.Anything, 1, []int{2, 5}).Return(map[int]models.FriendStatus{
		2: models.StatusFriends,
		5: models.StatusPendingSent,
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Threads []models.ThreadSummary `json:"threads"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Threads, 2)
	assert.Equal(t, models.StatusFriends, resp.Threads[0].FriendStatus)
	assert.Equal(t, models.StatusPendingSent, resp.Threads[1].FriendStatus)
	threadRepo.AssertExpectations(t)
	friendRepo.AssertExpectations(t)
}

func TestListThreadsRepoError(t *testing.T) {
	threadRepo := new(mocks.ThreadRepositoryMock)
	handler := NewThreadHandler(threadRepo, new(mocks.FriendRepositoryMock), new(mocks.InterestRepositoryMock), new(mocks.ContentClientMock), nil, nil, 1)
	router := setupThreadRouter(handler)

	threadRepo.On("ListThreads", mock.Anything, 1).Return(([]models.ThreadSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/threads", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	threadRepo.AssertExpectations(t)
}
