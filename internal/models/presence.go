package models

import "time"

// PresenceStatus is the derived view over a user's last heartbeat. No
// heartbeat on record means offline with a nil LastSeen.
type PresenceStatus struct {
	Online   bool       `json:"online"`
	LastSeen *time.Time `json:"last_seen"`
}
