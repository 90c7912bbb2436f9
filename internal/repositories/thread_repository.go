package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"dm-service/internal/models"
)

var (
	ErrThreadNotFound = errors.New("thread not found")
	ErrSelfThread     = errors.New("cannot start a thread with yourself")
)

const uniqueViolation = pq.ErrorCode("23505")

// ThreadRepository abstracts thread persistence.
type ThreadRepository interface {
	CreateOrGetThread(ctx context.Context, requesterID, counterpartID int, contextID *int) (models.Thread, error)
	GetThread(ctx context.Context, threadID int) (models.Thread, error)
	IsParticipant(ctx context.Context, threadID, userID int) (bool, error)
	ListThreads(ctx context.Context, viewerID int) ([]models.ThreadSummary, error)
	UpsertContact(ctx context.Context, ownerID, contactID int) error
}

// ThreadRepo is a sqlx implementation of ThreadRepository.
type ThreadRepo struct {
	db *sqlx.DB
}

// NewThreadRepo constructs a ThreadRepo.
func NewThreadRepo(db *sqlx.DB) *ThreadRepo {
	return &ThreadRepo{db: db}
}

const threadColumns = `id, user1_id, user2_id, context_id, created_at, updated_at`

// CreateOrGetThread resolves the single thread for (pair, context), creating
// it with both participant rows if it does not exist. Concurrent creators are
// serialized by the partial unique indexes: the loser re-reads the winner's
// row, so N racing calls resolve to one thread id.
func (r *ThreadRepo) CreateOrGetThread(ctx context.Context, requesterID, counterpartID int, contextID *int) (models.Thread, error) {
	if requesterID == counterpartID {
		return models.Thread{}, ErrSelfThread
	}
	pair := []int{requesterID, counterpartID}
	sort.Ints(pair)
	user1, user2 := pair[0], pair[1]

	thread, err := r.findThread(ctx, user1, user2, contextID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, err
	}

	thread, err = r.insertThread(ctx, requesterID, counterpartID, user1, user2, contextID)
	if err == nil {
		return thread, nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		// Lost the race; the winner's thread is the canonical one.
		return r.findThread(ctx, user1, user2, contextID)
	}
	return models.Thread{}, err
}

func (r *ThreadRepo) findThread(ctx context.Context, user1, user2 int, contextID *int) (models.Thread, error) {
	var thread models.Thread
	query := `SELECT ` + threadColumns + ` FROM threads
        WHERE user1_id=$1 AND user2_id=$2 AND context_id IS NOT DISTINCT FROM $3`
	err := r.db.GetContext(ctx, &thread, query, user1, user2, contextID)
	return thread, err
}

func (r *ThreadRepo) insertThread(ctx context.Context, requesterID, counterpartID, user1, user2 int, contextID *int) (models.Thread, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Thread{}, err
	}
	defer tx.Rollback()

	var thread models.Thread
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO threads (user1_id, user2_id, context_id) VALUES ($1, $2, $3)
         RETURNING `+threadColumns, user1, user2, contextID).StructScan(&thread); err != nil {
		return models.Thread{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thread_participants (thread_id, user_id, role) VALUES ($1, $2, $3), ($1, $4, $5)`,
		thread.ID, requesterID, models.RoleInitiator, counterpartID, models.RoleCounterpart); err != nil {
		return models.Thread{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Thread{}, err
	}
	return thread, nil
}

// GetThread fetches a thread by id.
func (r *ThreadRepo) GetThread(ctx context.Context, threadID int) (models.Thread, error) {
	var thread models.Thread
	err := r.db.GetContext(ctx, &thread, `SELECT `+threadColumns+` FROM threads WHERE id=$1`, threadID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Thread{}, ErrThreadNotFound
	}
	return thread, err
}

// IsParticipant checks whether a user belongs to the thread.
func (r *ThreadRepo) IsParticipant(ctx context.Context, threadID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM thread_participants WHERE thread_id=$1 AND user_id=$2)`,
		threadID, userID)
	return exists, err
}

type threadSummaryRow struct {
	ID                 int       `db:"id"`
	User1ID            int       `db:"user1_id"`
	User2ID            int       `db:"user2_id"`
	ContextID          *int      `db:"context_id"`
	UpdatedAt          time.Time `db:"updated_at"`
	UnreadCount        int       `db:"unread_count"`
	LastMessagePreview string    `db:"last_message_preview"`
}

// ListThreads builds the viewer's thread list: unread counts and last-message
// previews come from bounded lookups, ordering from the updated_at marker that
// message creation bumps. Everyone-deleted messages count as read noise, not
// unread, and preview as the deletion placeholder; messages the viewer
// self-deleted never surface as previews.
func (r *ThreadRepo) ListThreads(ctx context.Context, viewerID int) ([]models.ThreadSummary, error) {
	query := `SELECT t.id, t.user1_id, t.user2_id, t.context_id, t.updated_at,
            COALESCE(u.unread, 0) AS unread_count,
            COALESCE(lm.preview, '') AS last_message_preview
        FROM threads t
        JOIN thread_participants tp ON tp.thread_id = t.id AND tp.user_id = $1
        LEFT JOIN LATERAL (
            SELECT COUNT(*) AS unread FROM messages m
            WHERE m.thread_id = t.id AND m.sender_id <> $1 AND m.read_at IS NULL
              AND NOT (m.deleted_at IS NOT NULL AND m.deleted_scope = 'everyone')
        ) u ON TRUE
        LEFT JOIN LATERAL (
            SELECT CASE
                WHEN m.deleted_at IS NOT NULL AND m.deleted_scope = 'everyone' THEN $2
                ELSE m.content
            END AS preview
            FROM messages m
            WHERE m.thread_id = t.id
              AND NOT (m.deleted_at IS NOT NULL AND m.deleted_scope = 'self' AND m.deleted_by = $1)
            ORDER BY m.created_at DESC
            LIMIT 1
        ) lm ON TRUE
        ORDER BY t.updated_at DESC`

	var rows []threadSummaryRow
	if err := r.db.SelectContext(ctx, &rows, query, viewerID, models.DeletedPlaceholder); err != nil {
		return nil, err
	}

	result := make([]models.ThreadSummary, 0, len(rows))
	for _, row := range rows {
		counterpart := row.User1ID
		if counterpart == viewerID {
			counterpart = row.User2ID
		}
		result = append(result, models.ThreadSummary{
			ThreadID:           row.ID,
			CounterpartID:      counterpart,
			ContextID:          row.ContextID,
			UnreadCount:        row.UnreadCount,
			LastMessagePreview: row.LastMessagePreview,
			UpdatedAt:          row.UpdatedAt,
		})
	}
	return result, nil
}

// UpsertContact records an address-book edge; callers treat failures as
// best-effort.
func (r *ThreadRepo) UpsertContact(ctx context.Context, ownerID, contactID int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO contacts (owner_id, contact_id) VALUES ($1, $2)
         ON CONFLICT (owner_id, contact_id) DO NOTHING`, ownerID, contactID)
	return err
}
