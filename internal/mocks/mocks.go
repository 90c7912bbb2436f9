package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dm-service/internal/clients"
	"dm-service/internal/models"
	"dm-service/internal/presence"
	"dm-service/internal/repositories"
)

var (
	_ repositories.ThreadRepository   = (*ThreadRepositoryMock)(nil)
	_ repositories.MessageRepository  = (*MessageRepositoryMock)(nil)
	_ repositories.FriendRepository   = (*FriendRepositoryMock)(nil)
	_ repositories.InterestRepository = (*InterestRepositoryMock)(nil)
	_ clients.ContentClient           = (*ContentClientMock)(nil)
	_ clients.EntitlementClient       = (*EntitlementClientMock)(nil)
	_ clients.StorageClient           = (*StorageClientMock)(nil)
	_ presence.Tracker                = (*TrackerMock)(nil)
)

type ThreadRepositoryMock struct {
	mock.Mock
}

func (m *ThreadRepositoryMock) CreateOrGetThread(ctx context.Context, requesterID, counterpartID int, contextID *int) (models.Thread, error) {
	args := m.Called(ctx, requesterID, counterpartID, contextID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) GetThread(ctx context.Context, threadID int) (models.Thread, error) {
	args := m.Called(ctx, threadID)
	var thread models.Thread
	if val := args.Get(0); val != nil {
		thread = val.(models.Thread)
	}
	return thread, args.Error(1)
}

func (m *ThreadRepositoryMock) IsParticipant(ctx context.Context, threadID, userID int) (bool, error) {
	args := m.Called(ctx, threadID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ThreadRepositoryMock) ListThreads(ctx context.Context, viewerID int) ([]models.ThreadSummary, error) {
	args := m.Called(ctx, viewerID)
	var list []models.ThreadSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ThreadSummary)
	}
	return list, args.Error(1)
}

func (m *ThreadRepositoryMock) UpsertContact(ctx context.Context, ownerID, contactID int) error {
	args := m.Called(ctx, ownerID, contactID)
	return args.Error(0)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	args := m.Called(ctx, msg)
	var created models.Message
	if val := args.Get(0); val != nil {
		created = val.(models.Message)
	}
	return created, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessagesForUser(ctx context.Context, threadID, viewerID int) ([]models.Message, error) {
	args := m.Called(ctx, threadID, viewerID)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) MarkThreadRead(ctx context.Context, threadID, readerID int) (int, error) {
	args := m.Called(ctx, threadID, readerID)
	return args.Int(0), args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID, actorID int, scope models.DeletionScope) (bool, error) {
	args := m.Called(ctx, messageID, actorID, scope)
	return args.Bool(0), args.Error(1)
}

type FriendRepositoryMock struct {
	mock.Mock
}

func (m *FriendRepositoryMock) SendRequest(ctx context.Context, fromUser, toUser int) (models.FriendRequest, error) {
	args := m.Called(ctx, fromUser, toUser)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *FriendRepositoryMock) GetRequest(ctx context.Context, requestID int) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *FriendRepositoryMock) AcceptRequest(ctx context.Context, requestID, callerID int) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID, callerID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *FriendRepositoryMock) DeclineRequest(ctx context.Context, requestID, callerID int) (models.FriendRequest, error) {
	args := m.Called(ctx, requestID, callerID)
	var req models.FriendRequest
	if val := args.Get(0); val != nil {
		req = val.(models.FriendRequest)
	}
	return req, args.Error(1)
}

func (m *FriendRepositoryMock) ListPendingRequests(ctx context.Context, toUser int) ([]models.FriendRequest, error) {
	args := m.Called(ctx, toUser)
	var list []models.FriendRequest
	if val := args.Get(0); val != nil {
		list = val.([]models.FriendRequest)
	}
	return list, args.Error(1)
}

func (m *FriendRepositoryMock) GetStatus(ctx context.Context, viewerID, counterpartID int) (models.FriendStatus, error) {
	args := m.Called(ctx, viewerID, counterpartID)
	var status models.FriendStatus
	if val := args.Get(0); val != nil {
		status = val.(models.FriendStatus)
	}
	return status, args.Error(1)
}

func (m *FriendRepositoryMock) GetStatusMap(ctx context.Context, viewerID int, counterpartIDs []int) (map[int]models.FriendStatus, error) {
	args := m.Called(ctx, viewerID, counterpartIDs)
	var statuses map[int]models.FriendStatus
	if val := args.Get(0); val != nil {
		statuses = val.(map[int]models.FriendStatus)
	}
	return statuses, args.Error(1)
}

func (m *FriendRepositoryMock) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	args := m.Called(ctx, userID, friendID)
	return args.Bool(0), args.Error(1)
}

type InterestRepositoryMock struct {
	mock.Mock
}

func (m *InterestRepositoryMock) GetUserInterests(ctx context.Context, userID int) ([]string, error) {
	args := m.Called(ctx, userID)
	var interests []string
	if val := args.Get(0); val != nil {
		interests = val.([]string)
	}
	return interests, args.Error(1)
}

type ContentClientMock struct {
	mock.Mock
}

func (m *ContentClientMock) ResolveContextOwner(ctx context.Context, contextID int) (int, error) {
	args := m.Called(ctx, contextID)
	return args.Int(0), args.Error(1)
}

type EntitlementClientMock struct {
	mock.Mock
}

func (m *EntitlementClientMock) GetEntitlement(ctx context.Context, userID int) (clients.Entitlement, error) {
	args := m.Called(ctx, userID)
	var ent clients.Entitlement
	if val := args.Get(0); val != nil {
		ent = val.(clients.Entitlement)
	}
	return ent, args.Error(1)
}

type StorageClientMock struct {
	mock.Mock
}

func (m *StorageClientMock) StoreBinary(ctx context.Context, data []byte, bucket string) (string, error) {
	args := m.Called(ctx, data, bucket)
	return args.String(0), args.Error(1)
}

type TrackerMock struct {
	mock.Mock
}

func (m *TrackerMock) Heartbeat(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

func (m *TrackerMock) GetPresence(ctx context.Context, userIDs []int) (map[int]models.PresenceStatus, error) {
	args := m.Called(ctx, userIDs)
	var statuses map[int]models.PresenceStatus
	if val := args.Get(0); val != nil {
		statuses = val.(map[int]models.PresenceStatus)
	}
	return statuses, args.Error(1)
}
