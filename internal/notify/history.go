package notify

import (
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultHistorySize is the number of recent notifications kept for /status.
const DefaultHistorySize = 100

// Entry summarises one processed notification.
type Entry struct {
	ID         string    `json:"id"`
	Event      string    `json:"event"`
	ReceivedAt time.Time `json:"received_at"`
	Graphs     int       `json:"graphs"`
	Nodes      int       `json:"nodes"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
}

// History keeps the most recent entries and running totals.
// Safe for concurrent use.
type History struct {
	recent    *lru.Cache[string, Entry]
	processed atomic.Int64
	failed    atomic.Int64
}

// NewHistory creates a History holding up to size entries.
// Non-positive sizes fall back to DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	recent, _ := lru.New[string, Entry](size)
	return &History{recent: recent}
}

// Add records an entry, evicting the oldest when full.
func (h *History) Add(e Entry) {
	h.processed.Add(1)
	if e.Error != "" {
		h.failed.Add(1)
	}
	h.recent.Add(e.ID, e)
}

// Recent returns up to n entries, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []Entry {
	keys := h.recent.Keys() // oldest to newest
	if n <= 0 || n > len(keys) {
		n = len(keys)
	}
	out := make([]Entry, 0, n)
	for i := len(keys) - 1; i >= 0 && len(out) < n; i-- {
		if e, ok := h.recent.Peek(keys[i]); ok {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry with the given correlation id.
func (h *History) Get(id string) (Entry, bool) {
	return h.recent.Peek(id)
}

// Totals returns how many notifications were recorded and how many failed.
func (h *History) Totals() (processed, failed int64) {
	return h.processed.Load(), h.failed.Load()
}
