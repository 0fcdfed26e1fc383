package registry

import (
	"sync"
	"time"
)

// HistoryDirection names which side of the registry an entry records.
type HistoryDirection string

const (
	HistoryImport HistoryDirection = "import"
	HistoryExport HistoryDirection = "export"
)

// HistoryEntry is one recorded import or export attempt.
type HistoryEntry struct {
	Direction HistoryDirection `json:"direction"`
	Format    string           `json:"format"`
	Timestamp time.Time        `json:"timestamp"`
	Success   bool             `json:"success"`
	// ErrorSummary is the first error message, empty on success.
	ErrorSummary string `json:"errorSummary,omitempty"`
}

// History is a bounded ring buffer of import/export attempts owned by a
// Registry instance. There is no process-wide singleton; each registry
// tracks its own attempts.
type History struct {
	mu    sync.Mutex
	cap   int
	items []HistoryEntry
	next  int
	full  bool
}

// NewHistory creates a ring with the given capacity. Capacities below one
// are clamped to one.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{cap: capacity, items: make([]HistoryEntry, capacity)}
}

// Append records an entry, evicting the oldest once the ring is full.
func (h *History) Append(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items[h.next] = e
	h.next = (h.next + 1) % h.cap
	if h.next == 0 {
		h.full = true
	}
}

// Entries returns the recorded entries, oldest first.
func (h *History) Entries() []HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.full {
		out := make([]HistoryEntry, h.next)
		copy(out, h.items[:h.next])
		return out
	}
	out := make([]HistoryEntry, 0, h.cap)
	out = append(out, h.items[h.next:]...)
	out = append(out, h.items[:h.next]...)
	return out
}

// Len reports how many entries are currently retained.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.full {
		return h.cap
	}
	return h.next
}

// Clear drops all retained entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.items = make([]HistoryEntry, h.cap)
	h.next = 0
	h.full = false
}
