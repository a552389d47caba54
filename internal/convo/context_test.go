package convo

import "testing"

func TestAddRejectsUnknownRole(t *testing.T) {
	c := NewContext()
	if err := c.Add("system", "nope"); err == nil {
		t.Error("expected error for invalid role")
	}
	if err := c.Add(RoleUser, "hi"); err != nil {
		t.Errorf("Add(user): %v", err)
	}
}

func TestWindow(t *testing.T) {
	c := NewContext()
	for _, m := range []string{"a", "b", "c", "d"} {
		_ = c.Add(RoleUser, m)
	}

	w := c.Window(2)
	if len(w) != 2 || w[0].Content != "c" || w[1].Content != "d" {
		t.Errorf("Window(2) = %v", w)
	}
	if got := c.Window(10); len(got) != 4 {
		t.Errorf("Window(10) len = %d, want 4", len(got))
	}
	if got := c.Window(0); got != nil {
		t.Errorf("Window(0) = %v, want nil", got)
	}
}

func TestLast(t *testing.T) {
	c := NewContext()
	_ = c.Add(RoleUser, "question")
	_ = c.Add(RoleAssistant, "answer")
	_ = c.Add(RoleUser, "followup")

	if m := c.Last(RoleAssistant); m == nil || m.Content != "answer" {
		t.Errorf("Last(assistant) = %v", m)
	}
	if m := c.Last(RoleUser); m == nil || m.Content != "followup" {
		t.Errorf("Last(user) = %v", m)
	}
}

func TestRestoreCopies(t *testing.T) {
	src := []Message{{Role: RoleUser, Content: "hi"}}
	c := Restore(src)
	src[0].Content = "mutated"

	if c.History()[0].Content != "hi" {
		t.Error("Restore must copy the slice")
	}
}
