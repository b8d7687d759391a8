package utils

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// presenceKey is a sorted set of user ids scored by last heartbeat.
const presenceKey = "presence:last_seen"

var (
	presenceMem   = map[uint]time.Time{}
	presenceMemMu sync.Mutex
)

// MarkOnline records a heartbeat for the user.
func MarkOnline(userID uint) {
	now := time.Now()
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := rc.ZAdd(ctx, presenceKey, redis.Z{
			Score:  float64(now.Unix()),
			Member: strconv.FormatUint(uint64(userID), 10),
		}).Err()
		if err == nil {
			return
		}
		if Sugar != nil {
			Sugar.Warnf("presence heartbeat write failed user=%d err=%v", userID, err)
		}
	}
	presenceMemMu.Lock()
	presenceMem[userID] = now
	presenceMemMu.Unlock()
}

// OnlineUserIDs returns ids of users whose last heartbeat falls within
// the window, pruning anything older as a side effect.
func OnlineUserIDs(window time.Duration) []uint {
	cutoff := time.Now().Add(-window)

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = rc.ZRemRangeByScore(ctx, presenceKey, "0", strconv.FormatInt(cutoff.Unix()-1, 10)).Err()
		members, err := rc.ZRangeByScore(ctx, presenceKey, &redis.ZRangeBy{
			Min: strconv.FormatInt(cutoff.Unix(), 10),
			Max: "+inf",
		}).Result()
		if err == nil {
			ids := make([]uint, 0, len(members))
			for _, m := range members {
				if v, err := strconv.ParseUint(m, 10, 64); err == nil {
					ids = append(ids, uint(v))
				}
			}
			return ids
		}
		if Sugar != nil {
			Sugar.Warnf("presence roster read failed err=%v", err)
		}
	}

	presenceMemMu.Lock()
	defer presenceMemMu.Unlock()
	var ids []uint
	for id, seen := range presenceMem {
		if seen.Before(cutoff) {
			delete(presenceMem, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// LastSeen returns the recorded heartbeat time for a user, zero when
// unknown.
func LastSeen(userID uint) time.Time {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		score, err := rc.ZScore(ctx, presenceKey, strconv.FormatUint(uint64(userID), 10)).Result()
		if err == nil {
			return time.Unix(int64(score), 0)
		}
	}
	presenceMemMu.Lock()
	defer presenceMemMu.Unlock()
	return presenceMem[userID]
}
