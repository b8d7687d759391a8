package feed

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet interval after the last keystroke
// before the search term is emitted.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces keystroke-rate input into at most one emission
// per quiet period. A new input before the interval elapses cancels
// and reschedules the pending emission; the final input always emits.
type Debouncer struct {
	mu    sync.Mutex
	d     time.Duration
	emit  func(string)
	timer *time.Timer
	last  string
	// gen stamps the scheduled timer. A callback that was already
	// dequeued when the timer was rescheduled or cancelled carries a
	// stale stamp and must not emit.
	gen uint64
}

// NewDebouncer builds a debouncer that calls emit with the latest
// input once input has been quiet for d. A non-positive d falls back
// to DefaultDebounce.
func NewDebouncer(d time.Duration, emit func(string)) *Debouncer {
	if d <= 0 {
		d = DefaultDebounce
	}
	return &Debouncer{d: d, emit: emit}
}

// Input records a keystroke's worth of text and (re)starts the quiet
// interval. Only one timer is ever live.
func (b *Debouncer) Input(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	gen := b.gen
	b.timer = time.AfterFunc(b.d, func() { b.fire(gen) })
}

func (b *Debouncer) fire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen {
		b.mu.Unlock()
		return
	}
	s := b.last
	b.timer = nil
	b.mu.Unlock()
	b.emit(s)
}

// Flush emits the pending input immediately, if any. Used when the
// user submits the search form before the interval elapses.
func (b *Debouncer) Flush() {
	b.mu.Lock()
	if b.timer == nil {
		b.mu.Unlock()
		return
	}
	b.timer.Stop()
	b.timer = nil
	b.gen++
	s := b.last
	b.mu.Unlock()
	b.emit(s)
}

// Stop cancels any pending emission without firing it.
func (b *Debouncer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.gen++
}
