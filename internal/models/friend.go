package models

import "time"

// RequestStatus is the lifecycle state of a friend request row.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestDeclined RequestStatus = "declined"
)

// FriendRequest is a directed edge. At most one pending request exists per
// ordered (from, to) pair; rows are retained after accept/decline for audit
// and idempotence, never deleted.
type FriendRequest struct {
	ID        int           `db:"id" json:"id"`
	FromUser  int           `db:"from_user" json:"from_user"`
	ToUser    int           `db:"to_user" json:"to_user"`
	Status    RequestStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// Friendship is one direction of an accepted pair; two rows exist per
// friendship and are only ever created inside the accept transaction.
type Friendship struct {
	UserID    int       `db:"user_id" json:"user_id"`
	FriendID  int       `db:"friend_id" json:"friend_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// FriendStatus is the relationship as seen by one viewer.
type FriendStatus string

const (
	StatusNone            FriendStatus = "none"
	StatusPendingSent     FriendStatus = "pending_sent"
	StatusPendingReceived FriendStatus = "pending_received"
	StatusFriends         FriendStatus = "friends"
)
