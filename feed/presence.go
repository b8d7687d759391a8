package feed

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultPresenceInterval is how often the online roster is refreshed
// and the session heartbeat is sent.
const DefaultPresenceInterval = 30 * time.Second

// statusOnline is the heartbeat payload marking this session active.
const statusOnline = "online"

// Tracker maintains the online-member roster by periodic polling.
// Every tick does two things on the same cadence: replace the roster
// wholesale and send the session heartbeat. A missed tick delays both
// equally; this is a liveness signal, not a correctness-critical one.
//
// Polling is suppressed until SetAuthenticated(true), so an
// unauthenticated page never probes the members endpoint.
type Tracker struct {
	mu sync.Mutex

	gw       Gateway
	log      *zap.SugaredLogger
	interval time.Duration

	roster  []PresenceRecord
	authed  bool
	lastErr error

	cancel context.CancelFunc
}

// NewTracker builds a presence tracker polling at interval. A
// non-positive interval falls back to DefaultPresenceInterval; logger
// may be nil.
func NewTracker(gw Gateway, logger *zap.SugaredLogger, interval time.Duration) *Tracker {
	if interval <= 0 {
		interval = DefaultPresenceInterval
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Tracker{gw: gw, log: logger, interval: interval}
}

// Start launches the polling loop. It refreshes once immediately (the
// on-mount refresh) and then on every tick until ctx ends or Close is
// called. Start is a no-op if the loop is already running.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return
	}
	ctx, t.cancel = context.WithCancel(ctx)
	t.mu.Unlock()

	go t.loop(ctx)
}

func (t *Tracker) loop(ctx context.Context) {
	t.tick(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Tracker) tick(ctx context.Context) {
	t.mu.Lock()
	authed := t.authed
	t.mu.Unlock()
	if !authed {
		return
	}

	if err := t.gw.SetUserStatus(ctx, statusOnline); err != nil {
		t.log.Debugw("presence heartbeat failed", "err", err)
	}
	if _, err := t.Refresh(ctx); err != nil {
		t.log.Debugw("presence refresh failed", "err", err)
	}
}

// Refresh fetches the roster and replaces the previous one in full.
// Staleness tolerance is high and re-deriving is cheap, so there is no
// incremental merge. Safe to call on demand between ticks.
func (t *Tracker) Refresh(ctx context.Context) ([]PresenceRecord, error) {
	t.mu.Lock()
	authed := t.authed
	t.mu.Unlock()
	if !authed {
		return nil, validationErr("presence refresh before session established")
	}

	members, err := t.gw.ListOnlineMembers(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.lastErr = err
		return nil, err
	}
	t.roster = members
	t.lastErr = nil
	return members, nil
}

// SetAuthenticated gates polling on the session state. Flipping to
// false also clears the roster, since it was viewer-relative.
func (t *Tracker) SetAuthenticated(authed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.authed = authed
	if !authed {
		t.roster = nil
	}
}

// Roster returns the latest snapshot of online members.
func (t *Tracker) Roster() []PresenceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]PresenceRecord, len(t.roster))
	copy(out, t.roster)
	return out
}

// Err returns the error from the last failed refresh, if the roster is
// currently stale.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Close stops the polling loop.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}
