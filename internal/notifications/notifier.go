// Package notifications publishes engagement events to per-profile Redis channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published to a profile's channel.
const (
	EventPostLiked    = "post_liked"
	EventCommentLiked = "comment_liked"
	EventNewFollower  = "new_follower"
	EventNewComment   = "new_comment"
)

// Event is the JSON payload published for a profile.
type Event struct {
	Type      string    `json:"type"`
	Actor     string    `json:"actor"`
	PostSlug  string    `json:"post_slug,omitempty"`
	CommentID uint      `json:"comment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishProfile sends ev to the profile's channel. A nil client is a no-op.
func (n *Notifier) PublishProfile(ctx context.Context, profileID uint, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, ProfileChannel(profileID), string(payload)).Err()
}

// ProfileChannel derives the Redis channel name for a profile.
func ProfileChannel(profileID uint) string {
	return "notifications:profile:" + strconv.FormatUint(uint64(profileID), 10)
}
