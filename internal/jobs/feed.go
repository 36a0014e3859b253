package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/jo-hoe/content-localizer/internal/common"
)

// EventType classifies change records emitted by the record store.
type EventType string

const (
	EventInsert EventType = "insert"
	EventUpdate EventType = "update"
	EventDelete EventType = "delete"
)

// ChangeRecord is one notification from the record store's change feed.
type ChangeRecord struct {
	Event EventType
	JobID string
	At    time.Time
}

// ChangePublisher is implemented by consumers of store change notifications.
type ChangePublisher interface {
	Publish(rec ChangeRecord) bool
}

// Feed is a bounded in-process change feed. The record store publishes
// insert/update records into it; the dispatcher drains them in batches.
type Feed struct {
	ch        chan ChangeRecord
	closeOnce sync.Once

	mu      sync.Mutex
	dropped uint64
}

// NewFeed creates a feed with the given capacity.
func NewFeed(capacity int) *Feed {
	if capacity <= 0 {
		capacity = common.DefaultFeedCapacity
	}
	return &Feed{ch: make(chan ChangeRecord, capacity)}
}

// Publish delivers rec without blocking. When the feed is full the record is
// dropped and counted; a missed insert is recoverable through the direct
// invocation path.
func (f *Feed) Publish(rec ChangeRecord) bool {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	select {
	case f.ch <- rec:
		return true
	default:
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
		return false
	}
}

// Next blocks until a record is available or ctx ends. The second return
// value is false when the feed is closed or the context is done.
func (f *Feed) Next(ctx context.Context) (ChangeRecord, bool) {
	select {
	case <-ctx.Done():
		return ChangeRecord{}, false
	case rec, ok := <-f.ch:
		return rec, ok
	}
}

// DrainPending returns up to max records without blocking.
func (f *Feed) DrainPending(max int) []ChangeRecord {
	var out []ChangeRecord
	for len(out) < max {
		select {
		case rec, ok := <-f.ch:
			if !ok {
				return out
			}
			out = append(out, rec)
		default:
			return out
		}
	}
	return out
}

// Dropped reports how many records were discarded because the feed was full.
func (f *Feed) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close stops the feed. Publish after Close panics; callers are expected to
// stop the store first.
func (f *Feed) Close() {
	f.closeOnce.Do(func() { close(f.ch) })
}
