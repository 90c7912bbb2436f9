package models

import "time"

// Participant roles within a thread.
const (
	RoleInitiator   = "initiator"
	RoleCounterpart = "counterpart"
)

// Thread is a conversation between exactly two users, optionally scoped to a
// content context (a post). user1_id < user2_id always holds; the pair plus
// context is unique, with NULL context meaning the direct thread for the pair.
type Thread struct {
	ID        int       `db:"id" json:"id"`
	User1ID   int       `db:"user1_id" json:"user1_id"`
	User2ID   int       `db:"user2_id" json:"user2_id"`
	ContextID *int      `db:"context_id" json:"context_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Counterpart returns the other participant from the viewer's perspective.
func (t Thread) Counterpart(viewerID int) int {
	if t.User1ID == viewerID {
		return t.User2ID
	}
	return t.User1ID
}

// HasParticipant reports whether the user belongs to the thread.
func (t Thread) HasParticipant(userID int) bool {
	return t.User1ID == userID || t.User2ID == userID
}

// ThreadParticipant is a membership edge, created atomically with the thread.
type ThreadParticipant struct {
	ThreadID int    `db:"thread_id" json:"thread_id"`
	UserID   int    `db:"user_id" json:"user_id"`
	Role     string `db:"role" json:"role"`
}

// ThreadSummary is the denormalized list view for one viewer.
type ThreadSummary struct {
	ThreadID           int          `db:"id" json:"thread_id"`
	CounterpartID      int          `json:"counterpart_id"`
	ContextID          *int         `db:"context_id" json:"context_id,omitempty"`
	UnreadCount        int          `db:"unread_count" json:"unread_count"`
	LastMessagePreview string       `db:"last_message_preview" json:"last_message_preview"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
	FriendStatus       FriendStatus `json:"friend_status"`
}

// Contact is a best-effort address book edge created when a user starts a
// thread with someone.
type Contact struct {
	OwnerID   int       `db:"owner_id" json:"owner_id"`
	ContactID int       `db:"contact_id" json:"contact_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
