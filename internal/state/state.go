// Package state provides the flat, audited key/value store that holds all
// data collected during a conversation.
package state

import (
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"sync"
)

var templateRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Store is a flat map of conversation variables with an append-only audit
// trail. Values are strings, numbers, bools or nil. Reading never mutates.
type Store struct {
	mu    sync.RWMutex
	data  map[string]any
	audit *AuditLog
}

// New creates a Store seeded with initial values. No audit entries are
// recorded for the seed data.
func New(initial map[string]any) *Store {
	data := make(map[string]any, len(initial))
	for k, v := range initial {
		data[k] = v
	}
	return &Store{data: data, audit: NewAuditLog()}
}

// Get returns the value for key, or def if the key is absent.
func (s *Store) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.data[key]; ok {
		return v
	}
	return def
}

// Has reports whether key holds a non-nil value.
func (s *Store) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	return ok && v != nil
}

// Set writes key=value and records an audit entry iff the value changed.
// sourceTask identifies the task (or tool, or adjustment) that produced the
// write.
func (s *Store) Set(key string, value any, sourceTask string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, existed := s.data[key]
	s.data[key] = value
	// DeepEqual: tool outputs can carry slice or map values, which are not
	// comparable with ==.
	if !existed || !reflect.DeepEqual(old, value) {
		s.audit.Record(key, old, value, sourceTask)
	}
}

// Update applies every pair in data via Set, in sorted key order so the
// audit trail is deterministic.
func (s *Store) Update(data map[string]any, sourceTask string) {
	for _, k := range sortedKeys(data) {
		s.Set(k, data[k], sourceTask)
	}
}

// Snapshot returns a copy of all variables.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Len returns the number of stored variables.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Audit returns the store's audit log.
func (s *Store) Audit() *AuditLog {
	return s.audit
}

// ResolveTemplate substitutes {{key}} placeholders recursively through
// strings, slices and maps. Unresolved placeholders are left verbatim.
// Non-container, non-string values pass through unchanged.
func (s *Store) ResolveTemplate(v any) any {
	switch t := v.(type) {
	case string:
		return s.resolveString(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = s.ResolveTemplate(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = s.ResolveTemplate(item)
		}
		return out
	default:
		return v
	}
}

func (s *Store) resolveString(text string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return templateRe.ReplaceAllStringFunc(text, func(match string) string {
		name := templateRe.FindStringSubmatch(match)[1]
		if v, ok := s.data[name]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
		return match
	})
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
