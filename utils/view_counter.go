package utils

import (
	"context"
	"strconv"
	"sync"
	"time"

	"gorm.io/gorm"
)

// Post detail views are counted in Redis and flushed to MySQL in the
// background, so the hot read path never writes a row per request.
const viewKeyPrefix = "views:post:"

var (
	viewMem   = map[uint]int64{}
	viewMemMu sync.Mutex
)

// RecordPostView increments the pending view counter for a post.
func RecordPostView(postID uint) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Incr(ctx, viewKeyPrefix+strconv.FormatUint(uint64(postID), 10)).Err(); err == nil {
			return
		}
	}
	viewMemMu.Lock()
	viewMem[postID]++
	viewMemMu.Unlock()
}

// PendingPostViews drains the pending counter for a post, returning
// the number of views accumulated since the last flush.
func PendingPostViews(postID uint) int64 {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := viewKeyPrefix + strconv.FormatUint(uint64(postID), 10)
		n, err := rc.GetDel(ctx, key).Int64()
		if err == nil {
			return n
		}
		return 0
	}
	viewMemMu.Lock()
	defer viewMemMu.Unlock()
	n := viewMem[postID]
	delete(viewMem, postID)
	return n
}

// StartViewFlusher launches a background goroutine that periodically
// folds pending view counters into the posts table. Best effort; a
// missed flush only delays the counter, it never loses the session.
func StartViewFlusher(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		for {
			time.Sleep(interval)
			flushViews(db)
		}
	}()
}

func flushViews(db *gorm.DB) {
	for _, postID := range pendingViewPostIDs() {
		n := PendingPostViews(postID)
		if n == 0 {
			continue
		}
		err := db.Table("posts").Where("id = ?", postID).
			UpdateColumn("views", gorm.Expr("views + ?", n)).Error
		if err != nil && Sugar != nil {
			Sugar.Warnf("view flush failed post=%d err=%v", postID, err)
		}
	}
}

func pendingViewPostIDs() []uint {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		var ids []uint
		var cursor uint64
		for i := 0; i < 10; i++ {
			keys, cur, err := rc.Scan(ctx, cursor, viewKeyPrefix+"*", 1000).Result()
			if err != nil {
				break
			}
			cursor = cur
			for _, k := range keys {
				if v, err := strconv.ParseUint(k[len(viewKeyPrefix):], 10, 64); err == nil {
					ids = append(ids, uint(v))
				}
			}
			if cursor == 0 {
				break
			}
		}
		return ids
	}
	viewMemMu.Lock()
	defer viewMemMu.Unlock()
	ids := make([]uint, 0, len(viewMem))
	for id := range viewMem {
		ids = append(ids, id)
	}
	return ids
}
