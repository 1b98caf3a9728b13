// Package dedup tracks recently delivered event identities so redeliveries
// from an at-least-once webhook source are processed only once.
package dedup

import "sync"

// DefaultCapacity is the ledger bound used when none is configured.
const DefaultCapacity = 1000

// Key identifies one message delivery: the channel it was posted in and the
// platform-assigned message timestamp.
type Key struct {
	Channel string
	TS      string
}

// String returns the canonical "<channel>_<ts>" form.
func (k Key) String() string {
	return k.Channel + "_" + k.TS
}

// Ledger is a bounded, insertion-ordered set of Keys. Once the bound is
// reached the oldest-inserted tenth is evicted before the next insert, so the
// size never exceeds Cap. Safe for concurrent use.
type Ledger struct {
	mu    sync.Mutex
	cap   int
	seen  map[Key]struct{}
	order []Key
}

// New creates a ledger bounded at capacity. A non-positive capacity selects
// DefaultCapacity.
func New(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		cap:   capacity,
		seen:  make(map[Key]struct{}, capacity),
		order: make([]Key, 0, capacity),
	}
}

// Seen reports whether key has been recorded and not yet evicted.
func (l *Ledger) Seen(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[key]
	return ok
}

// Record adds key to the ledger. Recording a key that is already present is a
// no-op and does not refresh its position.
func (l *Ledger) Record(key Key) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.insertLocked(key)
}

// CheckAndRecord records key and reports whether this call was the first to
// do so. Concurrent callers racing on the same key see exactly one true.
func (l *Ledger) CheckAndRecord(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[key]; ok {
		return false
	}
	l.insertLocked(key)
	return true
}

// Len returns the number of keys currently held.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// Cap returns the ledger bound.
func (l *Ledger) Cap() int {
	return l.cap
}

func (l *Ledger) insertLocked(key Key) {
	if _, ok := l.seen[key]; ok {
		return
	}
	if len(l.order) >= l.cap {
		l.evictLocked()
	}
	l.seen[key] = struct{}{}
	l.order = append(l.order, key)
}

// evictLocked drops the oldest 10% of entries (at least one).
func (l *Ledger) evictLocked() {
	n := l.cap / 10
	if n < 1 {
		n = 1
	}
	if n > len(l.order) {
		n = len(l.order)
	}
	for _, k := range l.order[:n] {
		delete(l.seen, k)
	}
	l.order = append(l.order[:0], l.order[n:]...)
}
