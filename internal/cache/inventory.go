package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	ProfileKeyPrefix = "profile:public:%s"
	TagKeyPrefix     = "tag:%s"
)

const (
	ProfileTTL = 5 * time.Minute
	TagTTL     = 1 * time.Minute
)

// ProfileKey is the cache key of a profile's public view. Usernames are
// case-insensitive for lookup purposes.
func ProfileKey(username string) string {
	return fmt.Sprintf(ProfileKeyPrefix, strings.ToLower(username))
}

func TagKey(slug string) string {
	return fmt.Sprintf(TagKeyPrefix, slug)
}

// Family returns the key prefix used as a metrics label.
func Family(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateProfile(ctx context.Context, username string) {
	Invalidate(ctx, ProfileKey(username))
}

func InvalidateTag(ctx context.Context, slug string) {
	Invalidate(ctx, TagKey(slug))
}
