package utils

import (
	"context"
	"encoding/json"
	"time"
)

// Feed pages go stale fast; writers invalidate by prefix on mutation,
// the TTL is only a backstop.
const defaultCacheTTL = 5 * time.Minute

const cacheOpTimeout = 2 * time.Second

// CacheGetBytes returns the cached payload for key, if Redis has one.
func CacheGetBytes(key string) ([]byte, bool) {
	rc := GetRedis()
	if rc == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	b, err := rc.Get(ctx, key).Bytes()
	if err != nil {
		if Sugar != nil {
			Sugar.Debugw("cache miss", "key", key, "error", err)
		}
		return nil, false
	}
	return b, true
}

// CacheSetJSON marshals v and stores it under key for ttl.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := rc.Set(ctx, key, b, ttl).Err(); err != nil && Sugar != nil {
		Sugar.Warnw("cache set failed", "key", key, "error", err)
	}
}

// InvalidateByPrefix deletes every cached key under prefix using SCAN.
// The round cap keeps a mutation from stalling on a huge keyspace.
func InvalidateByPrefix(prefix string) {
	rc := GetRedis()
	if rc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	var cursor uint64
	for rounds := 0; rounds < 10; rounds++ {
		keys, next, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
		if err != nil {
			return
		}
		if len(keys) > 0 {
			_ = rc.Del(ctx, keys...).Err()
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
