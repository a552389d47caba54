package storage

import (
	"testing"

	"github.com/dohr-michael/chatguide/internal/events"
)

func TestEventLoggerWritesPerSession(t *testing.T) {
	bus := events.NewBus(16)
	el := NewEventLogger(t.TempDir(), bus)
	defer el.Close()

	bus.Publish(events.NewEvent(events.EventTurnStarted, "s1", map[string]any{"turn": 1}))
	bus.Publish(events.NewEvent(events.EventTaskCompleted, "s1", map[string]any{"task": "ask_age"}))
	bus.Publish(events.NewEvent(events.EventTurnStarted, "s2", nil))
	bus.Close()

	s1, err := el.SessionEvents("s1")
	if err != nil {
		t.Fatalf("SessionEvents(s1): %v", err)
	}
	if len(s1) != 2 {
		t.Fatalf("s1 events = %d, want 2", len(s1))
	}
	if s1[1].Type != events.EventTaskCompleted {
		t.Errorf("s1[1].Type = %s, want %s", s1[1].Type, events.EventTaskCompleted)
	}

	s2, err := el.SessionEvents("s2")
	if err != nil {
		t.Fatalf("SessionEvents(s2): %v", err)
	}
	if len(s2) != 1 {
		t.Errorf("s2 events = %d, want 1", len(s2))
	}
}

func TestEventLoggerGlobalFallback(t *testing.T) {
	bus := events.NewBus(16)
	el := NewEventLogger(t.TempDir(), bus)
	defer el.Close()

	bus.Publish(events.NewEvent(events.EventCheckpointSaved, "", nil))
	bus.Close()

	got, err := el.SessionEvents("_global")
	if err != nil {
		t.Fatalf("SessionEvents(_global): %v", err)
	}
	if len(got) != 1 {
		t.Errorf("global events = %d, want 1", len(got))
	}
}
