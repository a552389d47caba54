package state

import (
	"sync"
	"time"
)

// AuditEntry records a single state change.
type AuditEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Key        string    `json:"key"`
	Old        any       `json:"old_value"`
	New        any       `json:"new_value"`
	SourceTask string    `json:"source_task,omitempty"`
}

// AuditLog is an append-only log of state changes. Entries are write-only;
// there is no compaction.
type AuditLog struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

// NewAuditLog creates an empty audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Record appends an entry for a change to key.
func (l *AuditLog) Record(key string, old, new any, sourceTask string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, AuditEntry{
		Timestamp:  time.Now(),
		Key:        key,
		Old:        old,
		New:        new,
		SourceTask: sourceTask,
	})
}

// Entries returns a copy of all recorded entries in order.
func (l *AuditLog) Entries() []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Recent returns up to n of the most recent entries, oldest first. Used for
// correction context in prompts.
func (l *AuditLog) Recent(n int) []AuditEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || len(l.entries) == 0 {
		return nil
	}
	start := len(l.entries) - n
	if start < 0 {
		start = 0
	}
	out := make([]AuditEntry, len(l.entries)-start)
	copy(out, l.entries[start:])
	return out
}

// Len returns the number of recorded entries.
func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
