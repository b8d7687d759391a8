package utils

import (
	"context"
	"sync"
	"time"
)

// Logout revokes a token before its natural expiry. Redis carries the
// revocation with a TTL matching the remaining token lifetime; a process
// local map stands in when Redis cannot take the write.

const revokedKeyPrefix = "auth:revoked:"

var (
	revokedMu    sync.Mutex
	revokedLocal = map[string]time.Time{}
)

// BlacklistToken marks token as revoked until expiresAt.
func BlacklistToken(token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if rc.Set(ctx, revokedKeyPrefix+token, "1", ttl).Err() == nil {
			return
		}
	}
	revokedMu.Lock()
	revokedLocal[token] = expiresAt
	revokedMu.Unlock()
}

// IsTokenBlacklisted reports whether token was revoked by a logout.
func IsTokenBlacklisted(token string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := rc.Exists(ctx, revokedKeyPrefix+token).Result(); err == nil && n > 0 {
			return true
		}
	}

	revokedMu.Lock()
	defer revokedMu.Unlock()
	exp, ok := revokedLocal[token]
	if !ok {
		return false
	}
	if time.Now().After(exp) {
		delete(revokedLocal, token)
		return false
	}
	return true
}
