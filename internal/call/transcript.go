package call

import (
	"iter"
	"sync"
	"time"
)

// Sender identifies who wrote a transcript entry
type Sender string

const (
	SenderUser      Sender = "user"
	SenderCompanion Sender = "companion"
)

// Entry is one immutable transcript line
type Entry struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Transcript is an append-only ordered log. Insertion order is display order.
type Transcript struct {
	mu      sync.RWMutex
	entries []Entry
}

// Append adds an entry at the end of the log
func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	t.entries = append(t.entries, e)
	t.mu.Unlock()
}

// All is a lazy, ordered view over the log. Each range over it starts from
// the first entry and also sees entries appended while ranging.
func (t *Transcript) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := 0; ; i++ {
			t.mu.RLock()
			if i >= len(t.entries) {
				t.mu.RUnlock()
				return
			}
			e := t.entries[i]
			t.mu.RUnlock()

			if !yield(e) {
				return
			}
		}
	}
}

// Entries returns a copy of the log
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append(make([]Entry, 0, len(t.entries)), t.entries...)
}

// Len returns the number of entries
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
