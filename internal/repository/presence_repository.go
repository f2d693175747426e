package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campusworks/campus/internal/models"
)

const presenceKeyPrefix = "presence:"

// PresenceRepository keeps the online flag and last-seen timestamp in Redis.
// Online state expires on its own when a client stops refreshing it; the
// last-seen timestamp survives.
type PresenceRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceRepository constructs a presence repository.
func NewPresenceRepository(client *redis.Client, ttl time.Duration) *PresenceRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PresenceRepository{client: client, ttl: ttl}
}

// SetOnline refreshes the user's online marker and last-seen timestamp.
func (r *PresenceRepository) SetOnline(ctx context.Context, userID string, online bool) error {
	if r.client == nil {
		return nil
	}
	now := time.Now().UTC()

	if online {
		if err := r.client.Set(ctx, presenceKeyPrefix+"online:"+userID, "1", r.ttl).Err(); err != nil {
			return fmt.Errorf("set online: %w", err)
		}
	} else {
		if err := r.client.Del(ctx, presenceKeyPrefix+"online:"+userID).Err(); err != nil {
			return fmt.Errorf("clear online: %w", err)
		}
	}

	if err := r.client.Set(ctx, presenceKeyPrefix+"seen:"+userID, strconv.FormatInt(now.Unix(), 10), 0).Err(); err != nil {
		return fmt.Errorf("set last seen: %w", err)
	}
	return nil
}

// Get returns the presence snapshot for a user. Missing keys mean offline /
// never seen; Redis being unavailable is treated the same way rather than
// failing the profile read.
func (r *PresenceRepository) Get(ctx context.Context, userID string) (models.Presence, error) {
	if r.client == nil {
		return models.Presence{}, nil
	}

	var presence models.Presence

	online, err := r.client.Exists(ctx, presenceKeyPrefix+"online:"+userID).Result()
	if err != nil {
		return models.Presence{}, fmt.Errorf("presence exists: %w", err)
	}
	presence.Online = online > 0

	raw, err := r.client.Get(ctx, presenceKeyPrefix+"seen:"+userID).Result()
	if err != nil {
		if err == redis.Nil {
			return presence, nil
		}
		return models.Presence{}, fmt.Errorf("presence last seen: %w", err)
	}

	unix, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return presence, nil
	}
	seen := time.Unix(unix, 0).UTC()
	presence.LastSeen = &seen

	return presence, nil
}
