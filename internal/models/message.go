package models

import "time"

// MessageKind enumerates supported content kinds.
type MessageKind string

const (
	KindText     MessageKind = "text"
	KindImage    MessageKind = "image"
	KindAudio    MessageKind = "audio"
	KindVideo    MessageKind = "video"
	KindLocation MessageKind = "location"
)

// Valid reports whether k is a known content kind.
func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindAudio, KindVideo, KindLocation:
		return true
	}
	return false
}

// DeletionScope distinguishes delete-for-me from delete-for-everyone.
type DeletionScope string

const (
	ScopeSelf     DeletionScope = "self"
	ScopeEveryone DeletionScope = "everyone"
)

// Valid reports whether s is a known deletion scope.
func (s DeletionScope) Valid() bool {
	return s == ScopeSelf || s == ScopeEveryone
}

// DeletionState is the tagged view over the deletion columns.
type DeletionState int

const (
	DeletionActive DeletionState = iota
	DeletedForSelf
	DeletedForEveryone
)

// DeletedPlaceholder replaces the payload of everyone-deleted messages.
const DeletedPlaceholder = "message deleted"

// Message is a single message within a thread. Content holds text for the
// text kind, a storage URL for image/audio/video, and a label for location.
// read_at is set at most once, only by the non-sending participant.
// Deletion is soft only; the row is never removed.
type Message struct {
	ID              int         `db:"id" json:"id"`
	ThreadID        int         `db:"thread_id" json:"thread_id"`
	SenderID        int         `db:"sender_id" json:"sender_id"`
	Kind            MessageKind `db:"kind" json:"kind"`
	Content         string      `db:"content" json:"content"`
	DurationSeconds *int        `db:"duration_seconds" json:"duration_seconds,omitempty"`
	SizeBytes       *int64      `db:"size_bytes" json:"size_bytes,omitempty"`
	Latitude        *float64    `db:"latitude" json:"latitude,omitempty"`
	Longitude       *float64    `db:"longitude" json:"longitude,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
	ReadAt          *time.Time  `db:"read_at" json:"read_at,omitempty"`
	DeletedAt       *time.Time  `db:"deleted_at" json:"deleted_at,omitempty"`
	DeletedScope    *string     `db:"deleted_scope" json:"deleted_scope,omitempty"`
	DeletedBy       *int        `db:"deleted_by" json:"deleted_by,omitempty"`
}

// State derives the tagged deletion state from the storage columns.
func (m Message) State() DeletionState {
	if m.DeletedAt == nil || m.DeletedScope == nil {
		return DeletionActive
	}
	if DeletionScope(*m.DeletedScope) == ScopeEveryone {
		return DeletedForEveryone
	}
	return DeletedForSelf
}

// VisibleTo reports whether the viewer should see the message at all.
// Self-scope deletion suppresses the message only for the deleter; the
// counterpart keeps seeing it. Everyone-deleted rows stay visible as markers.
func (m Message) VisibleTo(viewerID int) bool {
	if m.State() == DeletedForSelf && m.DeletedBy != nil && *m.DeletedBy == viewerID {
		return false
	}
	return true
}

// Rendered returns the message as it may be shown to any viewer. Once a
// message is deleted for everyone its payload is unrenderable, including for
// the original sender.
func (m Message) Rendered() Message {
	if m.State() != DeletedForEveryone {
		return m
	}
	out := m
	out.Content = DeletedPlaceholder
	out.DurationSeconds = nil
	out.SizeBytes = nil
	out.Latitude = nil
	out.Longitude = nil
	return out
}

// ThreadEvent is broadcast through websockets to thread subscribers.
type ThreadEvent struct {
	Type        string   `json:"type"`
	Message     *Message `json:"message,omitempty"`
	MessageID   int      `json:"message_id,omitempty"`
	UserID      int      `json:"user_id,omitempty"`
	IsTyping    bool     `json:"is_typing,omitempty"`
	ExpiresInMS int      `json:"expires_in_ms,omitempty"`
	Count       int      `json:"count,omitempty"`
}
