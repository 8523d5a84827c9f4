package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/angelmondragon/petshop-storefront/pkg/broadcast"
	"github.com/angelmondragon/petshop-storefront/pkg/enums"
	"github.com/google/uuid"
)

const defaultFeedSize = 50

// Entry is one recorded toast.
type Entry struct {
	ID        uuid.UUID      `json:"id"`
	Message   string         `json:"message"`
	Severity  enums.Severity `json:"severity"`
	CreatedAt time.Time      `json:"createdAt"`
	Read      bool           `json:"read"`
}

// Feed keeps the most recent notify events for surfaces that attach late.
type Feed struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
	now     func() time.Time
}

func NewFeed(limit int) *Feed {
	if limit <= 0 {
		limit = defaultFeedSize
	}
	return &Feed{limit: limit, now: time.Now}
}

// Attach subscribes the feed to the notify topic.
func (f *Feed) Attach(bus *broadcast.Bus) func() {
	return broadcast.On(bus, func(_ context.Context, n broadcast.Notify) {
		f.record(n)
	})
}

func (f *Feed) record(n broadcast.Notify) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, Entry{
		ID:        uuid.New(),
		Message:   n.Message,
		Severity:  n.Severity,
		CreatedAt: f.now().UTC(),
	})
	if overflow := len(f.entries) - f.limit; overflow > 0 {
		f.entries = append([]Entry(nil), f.entries[overflow:]...)
	}
}

// List returns entries newest first.
func (f *Feed) List() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, 0, len(f.entries))
	for i := len(f.entries) - 1; i >= 0; i-- {
		out = append(out, f.entries[i])
	}
	return out
}

// MarkAllRead flags every entry as read and returns how many changed.
func (f *Feed) MarkAllRead() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	changed := 0
	for i := range f.entries {
		if !f.entries[i].Read {
			f.entries[i].Read = true
			changed++
		}
	}
	return changed
}

// Reset drops every entry.
func (f *Feed) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
}
