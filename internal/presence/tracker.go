package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dm-service/internal/models"
)

// Tracker records heartbeats and derives online/last-seen state.
type Tracker interface {
	Heartbeat(ctx context.Context, userID int) error
	GetPresence(ctx context.Context, userIDs []int) (map[int]models.PresenceStatus, error)
}

// RedisTracker keeps one key per user holding the last heartbeat timestamp.
// Keys expire after the freshness window, so an absent key simply reads as
// offline with no last-seen; last-write-wins is correct for heartbeats.
type RedisTracker struct {
	client *redis.Client
	window time.Duration
	now    func() time.Time
}

// NewRedisTracker constructs a tracker with the given freshness window.
func NewRedisTracker(client *redis.Client, window time.Duration) *RedisTracker {
	return &RedisTracker{client: client, window: window, now: time.Now}
}

func presenceKey(userID int) string {
	return fmt.Sprintf("presence:last_seen:%d", userID)
}

// Heartbeat upserts the user's last heartbeat timestamp.
func (t *RedisTracker) Heartbeat(ctx context.Context, userID int) error {
	now := t.now().UTC()
	return t.client.Set(ctx, presenceKey(userID), now.Format(time.RFC3339Nano), t.window).Err()
}

// GetPresence derives online/last-seen for each requested user.
func (t *RedisTracker) GetPresence(ctx context.Context, userIDs []int) (map[int]models.PresenceStatus, error) {
	result := make(map[int]models.PresenceStatus, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, presenceKey(id))
	}

	values, err := t.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	now := t.now()
	for i, id := range userIDs {
		raw, ok := values[i].(string)
		if !ok {
			result[id] = models.PresenceStatus{}
			continue
		}
		lastSeen, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			result[id] = models.PresenceStatus{}
			continue
		}
		result[id] = deriveStatus(lastSeen, now, t.window)
	}
	return result, nil
}

// deriveStatus reports online iff the heartbeat is within the freshness
// window.
func deriveStatus(lastSeen, now time.Time, window time.Duration) models.PresenceStatus {
	seen := lastSeen
	return models.PresenceStatus{
		Online:   now.Sub(lastSeen) < window,
		LastSeen: &seen,
	}
}
