package stream

import (
	"strings"
	"sync"
)

// DefaultLogCap is the number of log lines kept per stream
const DefaultLogCap = 500

// EntryKind tells the UI how to render an Entry
type EntryKind int

const (
	EntryLog    EntryKind = iota // a log line from the backend
	EntryInfo                    // a synthetic informational line
	EntryError                   // an error line
	EntryOutput                  // raw terminal output
)

// Entry is one display record
type Entry struct {
	Kind         EntryKind
	ID           int64
	DeploymentID string
	Message      string
	Timestamp    string
	Stream       string
	Level        string
}

// Buffer is an ordered, append-only list of entries holding at most cap
// items (0 means unbounded). The owning Session appends; any goroutine may
// read a snapshot.
type Buffer struct {
	mu      sync.RWMutex
	cap     int
	entries []Entry
	total   uint64 // entries ever appended
}

// NewBuffer creates an empty buffer; capacity <= 0 disables eviction
func NewBuffer(capacity int) *Buffer {
	if capacity < 0 {
		capacity = 0
	}
	return &Buffer{cap: capacity}
}

// Append adds e, evicting the oldest entries beyond the cap
func (b *Buffer) Append(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, e)
	b.total++
	if b.cap > 0 && len(b.entries) > b.cap {
		b.entries = b.entries[len(b.entries)-b.cap:]
	}
}

// Len returns the number of entries
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// Cap returns the configured bound, 0 when unbounded
func (b *Buffer) Cap() int {
	return b.cap
}

// Snapshot returns a copy of the entries in order
func (b *Buffer) Snapshot() []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Since returns the entries appended at or after position n, where positions
// count every Append since the buffer was created, plus the position to pass
// next time. Evicted and cleared entries are skipped.
func (b *Buffer) Since(n uint64) ([]Entry, uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	first := b.total - uint64(len(b.entries))
	if n < first {
		n = first
	}
	if n >= b.total {
		return nil, b.total
	}
	src := b.entries[n-first:]
	out := make([]Entry, len(src))
	copy(out, src)
	return out, b.total
}

// Clear drops every entry
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

// hasInfo reports whether an informational entry mentions text
func (b *Buffer) hasInfo(text string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.entries {
		if e.Kind == EntryInfo && strings.Contains(e.Message, text) {
			return true
		}
	}
	return false
}
