package state

import (
	"testing"
)

func TestGetDefault(t *testing.T) {
	s := New(map[string]any{"name": "Ada"})

	if got := s.Get("name", nil); got != "Ada" {
		t.Errorf("Get(name) = %v, want Ada", got)
	}
	if got := s.Get("missing", "fallback"); got != "fallback" {
		t.Errorf("Get(missing) = %v, want fallback", got)
	}
}

func TestSetRecordsAuditOnChange(t *testing.T) {
	s := New(nil)

	s.Set("age", float64(30), "get_age")
	s.Set("age", float64(30), "get_age") // no change, no entry
	s.Set("age", float64(31), "correction")

	entries := s.Audit().Entries()
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].SourceTask != "get_age" || entries[0].New != float64(30) {
		t.Errorf("entry[0] = %+v", entries[0])
	}
	if entries[1].Old != float64(30) || entries[1].New != float64(31) {
		t.Errorf("entry[1] = %+v", entries[1])
	}
}

func TestSetUncomparableValue(t *testing.T) {
	s := New(nil)

	s.Set("options", []any{"red", "green"}, "pick_color")
	s.Set("options", []any{"red", "green"}, "pick_color") // no change, no entry
	s.Set("options", []any{"blue"}, "pick_color")

	entries := s.Audit().Entries()
	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if got := s.Get("options", nil); len(got.([]any)) != 1 {
		t.Errorf("options = %v, want [blue]", got)
	}
}

func TestInitialValuesNotAudited(t *testing.T) {
	s := New(map[string]any{"lang": "en"})
	if n := s.Audit().Len(); n != 0 {
		t.Errorf("audit len = %d, want 0", n)
	}
}

func TestUpdateDeterministicOrder(t *testing.T) {
	s := New(nil)
	s.Update(map[string]any{"b": "2", "a": "1", "c": "3"}, "tool")

	entries := s.Audit().Entries()
	if len(entries) != 3 {
		t.Fatalf("audit entries = %d, want 3", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if entries[i].Key != want {
			t.Errorf("entry[%d].Key = %q, want %q", i, entries[i].Key, want)
		}
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := New(map[string]any{"k": "v"})
	snap := s.Snapshot()
	snap["k"] = "mutated"

	if got := s.Get("k", nil); got != "v" {
		t.Errorf("store mutated through snapshot: %v", got)
	}
}

func TestResolveTemplateString(t *testing.T) {
	s := New(map[string]any{"user_name": "John", "age": float64(25)})

	got := s.ResolveTemplate("Hello {{user_name}}, you are {{age}}")
	want := "Hello John, you are 25"
	if got != want {
		t.Errorf("ResolveTemplate = %q, want %q", got, want)
	}
}

func TestResolveTemplateUnresolvedLeftVerbatim(t *testing.T) {
	s := New(nil)

	got := s.ResolveTemplate("Hi {{missing}}")
	if got != "Hi {{missing}}" {
		t.Errorf("ResolveTemplate = %q, want placeholder untouched", got)
	}
}

func TestResolveTemplateNested(t *testing.T) {
	s := New(map[string]any{"city": "Berlin"})

	got := s.ResolveTemplate(map[string]any{
		"where": "{{city}}",
		"list":  []any{"{{city}}", "{{nope}}", 7},
	})

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("got %T, want map", got)
	}
	if m["where"] != "Berlin" {
		t.Errorf("where = %v", m["where"])
	}
	list := m["list"].([]any)
	if list[0] != "Berlin" || list[1] != "{{nope}}" || list[2] != 7 {
		t.Errorf("list = %v", list)
	}
}

func TestRecent(t *testing.T) {
	s := New(nil)
	s.Set("a", "1", "t1")
	s.Set("b", "2", "t2")
	s.Set("c", "3", "t3")

	recent := s.Audit().Recent(2)
	if len(recent) != 2 {
		t.Fatalf("Recent(2) len = %d", len(recent))
	}
	if recent[0].Key != "b" || recent[1].Key != "c" {
		t.Errorf("Recent(2) = [%s %s], want [b c]", recent[0].Key, recent[1].Key)
	}
}
