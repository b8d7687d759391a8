package utils

import (
	"context"
	"sync"
	"time"
)

const (
	oauthStatePrefix     = "oauth:state:"
	oauthStateDefaultTTL = 10 * time.Minute
)

var (
	statesMu    sync.Mutex
	statesLocal = map[string]time.Time{}
)

// SaveState records an OAuth state nonce for ttl. States live in Redis
// so any instance can complete the callback; the local map only covers
// single-instance deployments without Redis.
func SaveState(state string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = oauthStateDefaultTTL
	}
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if rc.Set(ctx, oauthStatePrefix+state, "1", ttl).Err() == nil {
			return
		}
	}
	statesMu.Lock()
	statesLocal[state] = time.Now().Add(ttl)
	statesMu.Unlock()
}

// ConsumeState removes and validates a state nonce. A nonce is good
// for exactly one exchange.
func ConsumeState(state string) bool {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if n, err := rc.Del(ctx, oauthStatePrefix+state).Result(); err == nil {
			return n > 0
		}
	}
	statesMu.Lock()
	defer statesMu.Unlock()
	exp, ok := statesLocal[state]
	if !ok {
		return false
	}
	delete(statesLocal, state)
	return time.Now().Before(exp)
}
