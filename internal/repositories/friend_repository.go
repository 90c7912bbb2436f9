package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"dm-service/internal/models"
)

var (
	ErrRequestNotFound   = errors.New("friend request not found")
	ErrDuplicateRequest  = errors.New("friend request already pending")
	ErrReversePending    = errors.New("counterpart already sent a request")
	ErrAlreadyFriends    = errors.New("users are already friends")
	ErrRequestNotPending = errors.New("friend request is not pending")
	ErrNotPermitted      = errors.New("not permitted")
)

// FriendRepository owns the friend request lifecycle and friendship edges.
type FriendRepository interface {
	SendRequest(ctx context.Context, fromUser, toUser int) (models.FriendRequest, error)
	GetRequest(ctx context.Context, requestID int) (models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, callerID int) (models.FriendRequest, error)
	DeclineRequest(ctx context.Context, requestID, callerID int) (models.FriendRequest, error)
	ListPendingRequests(ctx context.Context, toUser int) ([]models.FriendRequest, error)
	GetStatus(ctx context.Context, viewerID, counterpartID int) (models.FriendStatus, error)
	GetStatusMap(ctx context.Context, viewerID int, counterpartIDs []int) (map[int]models.FriendStatus, error)
	AreFriends(ctx context.Context, userID, friendID int) (bool, error)
}

// FriendRepo is a sqlx implementation of FriendRepository.
type FriendRepo struct {
	db *sqlx.DB
}

// NewFriendRepo constructs a FriendRepo.
func NewFriendRepo(db *sqlx.DB) *FriendRepo {
	return &FriendRepo{db: db}
}

const requestColumns = `id, from_user, to_user, status, created_at, updated_at`

// SendRequest creates a pending request. A pending row in the same direction
// is a duplicate; one in the reverse direction is reported distinctly so the
// caller can redirect to accept. The partial unique index backstops the
// same-direction race.
func (r *FriendRepo) SendRequest(ctx context.Context, fromUser, toUser int) (models.FriendRequest, error) {
	friends, err := r.AreFriends(ctx, fromUser, toUser)
	if err != nil {
		return models.FriendRequest{}, err
	}
	if friends {
		return models.FriendRequest{}, ErrAlreadyFriends
	}

	var pending models.FriendRequest
	err = r.db.GetContext(ctx, &pending,
		`SELECT `+requestColumns+` FROM friend_requests
         WHERE status='pending' AND ((from_user=$1 AND to_user=$2) OR (from_user=$2 AND to_user=$1))
         LIMIT 1`, fromUser, toUser)
	if err == nil {
		if pending.FromUser == fromUser {
			return models.FriendRequest{}, ErrDuplicateRequest
		}
		return models.FriendRequest{}, ErrReversePending
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, err
	}

	var request models.FriendRequest
	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO friend_requests (from_user, to_user) VALUES ($1, $2)
         RETURNING `+requestColumns, fromUser, toUser).StructScan(&request)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return models.FriendRequest{}, ErrDuplicateRequest
	}
	if err != nil {
		return models.FriendRequest{}, err
	}
	return request, nil
}

// GetRequest fetches a request by id.
func (r *FriendRepo) GetRequest(ctx context.Context, requestID int) (models.FriendRequest, error) {
	var request models.FriendRequest
	err := r.db.GetContext(ctx, &request,
		`SELECT `+requestColumns+` FROM friend_requests WHERE id=$1`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	return request, err
}

// AcceptRequest transitions a pending request to accepted and materializes
// the friendship as both directed rows in the same transaction. A reverse
// pending row from the counterpart is resolved to accepted as well, so
// mutual sends collapse to friends with no dangling pending rows.
// Re-accepting an already-accepted request is a no-op success.
func (r *FriendRepo) AcceptRequest(ctx context.Context, requestID, callerID int) (models.FriendRequest, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.FriendRequest{}, err
	}
	defer tx.Rollback()

	var request models.FriendRequest
	err = tx.GetContext(ctx, &request,
		`SELECT `+requestColumns+` FROM friend_requests WHERE id=$1 FOR UPDATE`, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FriendRequest{}, ErrRequestNotFound
	}
	if err != nil {
		return models.FriendRequest{}, err
	}

	if request.ToUser != callerID {
		return models.FriendRequest{}, ErrNotPermitted
	}
	switch request.Status {
	case models.RequestAccepted:
		return request, nil
	case models.RequestDeclined:
		return models.FriendRequest{}, ErrRequestNotPending
	}

	if err := tx.GetContext(ctx, &request,
		`UPDATE friend_requests SET status='accepted', updated_at=NOW() WHERE id=$1
         RETURNING `+requestColumns, requestID); err != nil {
		return models.FriendRequest{}, err
	}

	// ON CONFLICT keeps re-acceptance and mutual acceptance from producing
	// duplicate edges.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO friendships (user_id, friend_id) VALUES ($1, $2), ($2, $1)
         ON CONFLICT (user_id, friend_id) DO NOTHING`,
		request.FromUser, request.ToUser); err != nil {
		return models.FriendRequest{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE friend_requests SET status='accepted', updated_at=NOW()
         WHERE from_user=$1 AND to_user=$2 AND status='pending'`,
		request.ToUser, request.FromUser); err != nil {
		return models.FriendRequest{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.FriendRequest{}, err
	}
	return request, nil
}

// DeclineRequest transitions a pending request to declined. The row is
// retained and excluded from pending lookups; a later send is permitted.
func (r *FriendRepo) DeclineRequest(ctx context.Context, requestID, callerID int) (models.FriendRequest, error) {
	request, err := r.GetRequest(ctx, requestID)
	if err != nil {
		return models.FriendRequest{}, err
	}
	if request.ToUser != callerID {
		return models.FriendRequest{}, ErrNotPermitted
	}
	if request.Status != models.RequestPending {
		return models.FriendRequest{}, ErrRequestNotPending
	}

	err = r.db.GetContext(ctx, &request,
		`UPDATE friend_requests SET status='declined', updated_at=NOW()
         WHERE id=$1 AND status='pending'
         RETURNING `+requestColumns, requestID)
	if errors.Is(err, sql.ErrNoRows) {
		// Raced with an accept or another decline; report the current row.
		return models.FriendRequest{}, ErrRequestNotPending
	}
	return request, err
}

// ListPendingRequests returns requests awaiting the user's decision.
func (r *FriendRepo) ListPendingRequests(ctx context.Context, toUser int) ([]models.FriendRequest, error) {
	var requests []models.FriendRequest
	err := r.db.SelectContext(ctx, &requests,
		`SELECT `+requestColumns+` FROM friend_requests
         WHERE to_user=$1 AND status='pending' ORDER BY created_at DESC`, toUser)
	return requests, err
}

// GetStatus resolves the relationship as seen by the viewer.
func (r *FriendRepo) GetStatus(ctx context.Context, viewerID, counterpartID int) (models.FriendStatus, error) {
	friends, err := r.AreFriends(ctx, viewerID, counterpartID)
	if err != nil {
		return models.StatusNone, err
	}
	if friends {
		return models.StatusFriends, nil
	}

	var request models.FriendRequest
	err = r.db.GetContext(ctx, &request,
		`SELECT `+requestColumns+` FROM friend_requests
         WHERE status='pending' AND ((from_user=$1 AND to_user=$2) OR (from_user=$2 AND to_user=$1))
         LIMIT 1`, viewerID, counterpartID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StatusNone, nil
	}
	if err != nil {
		return models.StatusNone, err
	}
	if request.FromUser == viewerID {
		return models.StatusPendingSent, nil
	}
	return models.StatusPendingReceived, nil
}

// GetStatusMap resolves statuses against many counterparts in two queries;
// the thread list projector uses it to avoid per-row lookups.
func (r *FriendRepo) GetStatusMap(ctx context.Context, viewerID int, counterpartIDs []int) (map[int]models.FriendStatus, error) {
	result := make(map[int]models.FriendStatus, len(counterpartIDs))
	for _, id := range counterpartIDs {
		result[id] = models.StatusNone
	}
	if len(counterpartIDs) == 0 {
		return result, nil
	}

	var friendIDs []int
	if err := r.db.SelectContext(ctx, &friendIDs,
		`SELECT friend_id FROM friendships WHERE user_id=$1 AND friend_id = ANY($2)`,
		viewerID, pq.Array(counterpartIDs)); err != nil {
		return nil, err
	}
	for _, id := range friendIDs {
		result[id] = models.StatusFriends
	}

	var requests []models.FriendRequest
	if err := r.db.SelectContext(ctx, &requests,
		`SELECT `+requestColumns+` FROM friend_requests
         WHERE status='pending'
           AND ((from_user=$1 AND to_user = ANY($2)) OR (to_user=$1 AND from_user = ANY($2)))`,
		viewerID, pq.Array(counterpartIDs)); err != nil {
		return nil, err
	}
	for _, request := range requests {
		if request.FromUser == viewerID {
			if result[request.ToUser] == models.StatusNone {
				result[request.ToUser] = models.StatusPendingSent
			}
		} else if result[request.FromUser] == models.StatusNone {
			result[request.FromUser] = models.StatusPendingReceived
		}
	}
	return result, nil
}

// AreFriends checks for the viewer-side friendship edge.
func (r *FriendRepo) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM friendships WHERE user_id=$1 AND friend_id=$2)`,
		userID, friendID)
	return exists, err
}
