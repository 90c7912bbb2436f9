package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for thread messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessagesForUser(ctx context.Context, threadID, viewerID int) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	MarkThreadRead(ctx context.Context, threadID, readerID int) (int, error)
	SoftDeleteMessage(ctx context.Context, messageID, actorID int, scope models.DeletionScope) (bool, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, thread_id, sender_id, kind, content, duration_seconds,
        size_bytes, latitude, longitude, created_at, read_at, deleted_at,
        deleted_scope, deleted_by`

// CreateMessage appends a message and bumps the thread's updated_at marker in
// the same transaction; the thread list orders on that marker and never scans
// for the latest message.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	var created models.Message
	if err := tx.QueryRowxContext(ctx,
		`INSERT INTO messages (thread_id, sender_id, kind, content, duration_seconds, size_bytes, latitude, longitude)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
         RETURNING `+messageColumns,
		msg.ThreadID, msg.SenderID, msg.Kind, msg.Content,
		msg.DurationSeconds, msg.SizeBytes, msg.Latitude, msg.Longitude).StructScan(&created); err != nil {
		return models.Message{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = $2 WHERE id = $1`,
		created.ThreadID, created.CreatedAt); err != nil {
		return models.Message{}, err
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return created, nil
}

// GetMessagesForUser returns ordered thread messages minus the rows the
// viewer deleted for themselves. Everyone-deleted rows are included; callers
// render them as deletion markers.
func (r *MessageRepo) GetMessagesForUser(ctx context.Context, threadID, viewerID int) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE thread_id=$1
        AND NOT (deleted_at IS NOT NULL AND deleted_scope = 'self' AND deleted_by = $2)
        ORDER BY created_at ASC`
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, query, threadID, viewerID)
	return msgs, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg,
		`SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkThreadRead stamps read_at on every unread message the reader did not
// send. The read_at IS NULL guard makes redundant calls no-ops: a second call
// marks zero rows and first-read timestamps are never overwritten.
func (r *MessageRepo) MarkThreadRead(ctx context.Context, threadID, readerID int) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET read_at = NOW()
         WHERE thread_id=$1 AND sender_id<>$2 AND read_at IS NULL`,
		threadID, readerID)
	if err != nil {
		return 0, err
	}
	count, err := res.RowsAffected()
	return int(count), err
}

// SoftDeleteMessage sets the deletion columns if the message is not already
// deleted. The deleted_at IS NULL guard absorbs concurrent duplicate calls;
// the bool reports whether this call changed the row.
func (r *MessageRepo) SoftDeleteMessage(ctx context.Context, messageID, actorID int, scope models.DeletionScope) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET deleted_at = NOW(), deleted_scope = $2, deleted_by = $3
         WHERE id=$1 AND deleted_at IS NULL`,
		messageID, scope, actorID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}
