// Package storage holds filesystem-backed persistence helpers shared by the
// runtime: the generic dirstore primitives and the session event log.
package storage

import (
	"github.com/dohr-michael/chatguide/internal/events"
	"github.com/dohr-michael/chatguide/internal/storage/dirstore"
)

// EventLogger persists bus events to JSONL files, one per session. Events
// without a session ID land in the _global log.
type EventLogger struct {
	ds          *dirstore.DirStore
	unsubscribe func()
}

// NewEventLogger creates an EventLogger subscribed to all bus events,
// writing under dir.
func NewEventLogger(dir string, bus *events.Bus) *EventLogger {
	el := &EventLogger{ds: dirstore.New(dir, "session")}
	el.unsubscribe = bus.Subscribe(el.handleEvent)
	return el
}

// Close unsubscribes the logger from the event bus.
func (el *EventLogger) Close() {
	if el.unsubscribe != nil {
		el.unsubscribe()
	}
}

func (el *EventLogger) handleEvent(e events.Event) {
	id := e.SessionID
	if id == "" {
		id = "_global"
	}
	if err := el.ds.EnsureDir(id); err != nil {
		return
	}
	_ = el.ds.AppendJSONL(id, "events.jsonl", e)
}

// SessionEvents returns all logged events for a session, oldest first.
func (el *EventLogger) SessionEvents(sessionID string) ([]events.Event, error) {
	return dirstore.LoadJSONL[events.Event](el.ds, sessionID, "events.jsonl")
}
