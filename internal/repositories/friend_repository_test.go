package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dm-service/internal/models"
)

func newFriendRepoMock(t *testing.T) (*FriendRepo, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewFriendRepo(sqlx.NewDb(db, "sqlmock")), mock
}

func requestRows(id, from, to int, status models.RequestStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "from_user", "to_user", "status", "created_at", "updated_at"}).
		AddRow(id, from, to, string(status), now, now)
}

// The accept transaction must write both directed friendship rows and flip a
// reverse pending row before committing, so mutual sends collapse to friends
// with no dangling pending rows.
func TestAcceptRequestInsertsBothEdgesAndFlipsReverse(t *testing.T) {
	repo, mock := newFriendRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM friend_requests WHERE id=(.+) FOR UPDATE").
		WithArgs(9).
		WillReturnRows(requestRows(9, 2, 1, models.RequestPending))
	mock.ExpectQuery("UPDATE friend_requests SET status='accepted'(.+)RETURNING").
		WithArgs(9).
		WillReturnRows(requestRows(9, 2, 1, models.RequestAccepted))
	mock.ExpectExec("INSERT INTO friendships").
		WithArgs(2, 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE friend_requests SET status='accepted'").
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	request, err := repo.AcceptRequest(context.Background(), 9, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, request.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptRequestIdempotent(t *testing.T) {
	repo, mock := newFriendRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM friend_requests WHERE id=(.+) FOR UPDATE").
		WithArgs(9).
		WillReturnRows(requestRows(9, 2, 1, models.RequestAccepted))
	mock.ExpectRollback()

	request, err := repo.AcceptRequest(context.Background(), 9, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, request.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptRequestWrongCaller(t *testing.T) {
	repo, mock := newFriendRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM friend_requests WHERE id=(.+) FOR UPDATE").
		WithArgs(9).
		WillReturnRows(requestRows(9, 2, 1, models.RequestPending))
	mock.ExpectRollback()

	_, err := repo.AcceptRequest(context.Background(), 9, 5)
	assert.ErrorIs(t, err, ErrNotPermitted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptRequestDeclinedConflicts(t *testing.T) {
	repo, mock := newFriendRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM friend_requests WHERE id=(.+) FOR UPDATE").
		WithArgs(9).
		WillReturnRows(requestRows(9, 2, 1, models.RequestDeclined))
	mock.ExpectRollback()

	_, err := repo.AcceptRequest(context.Background(), 9, 1)
	assert.ErrorIs(t, err, ErrRequestNotPending)
	require.NoError(t, mock.ExpectationsWereMet())
}

// Losing the insert race on the pending partial unique index surfaces as a
// duplicate, same as seeing the row up front.
func TestSendRequestUniqueViolationMapsToDuplicate(t *testing.T) {
	repo, mock := newFriendRepoMock(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT (.+) FROM friend_requests").
		WithArgs(1, 2).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("INSERT INTO friend_requests").
		WithArgs(1, 2).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.SendRequest(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSendRequestDetectsReversePending(t *testing.T) {
	repo, mock := newFriendRepoMock(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("SELECT (.+) FROM friend_requests").
		WithArgs(1, 2).
		WillReturnRows(requestRows(4, 2, 1, models.RequestPending))

	_, err := repo.SendRequest(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrReversePending)
	require.NoError(t, mock.ExpectationsWereMet())
}
