package adjust

import (
	"testing"

	"github.com/dohr-michael/chatguide/internal/plan"
	"github.com/dohr-michael/chatguide/internal/state"
)

func testTargets(p *plan.Plan, tone *[]string) (*Targets, *state.Store) {
	st := state.New(nil)
	return &Targets{
		State: st,
		Plan:  p,
		Tone:  tone,
		TaskFactory: func(id string) *plan.Task {
			return plan.NewTask(id, "")
		},
	}, st
}

func TestConditionAST(t *testing.T) {
	snap := Snapshot{
		State:     map[string]any{"age": "17", "mood": "happy", "empty": nil},
		PlanIndex: 2,
		Completed: []string{"get_name"},
		Tone:      []string{"warm"},
		Attempts:  map[string]int{"get_age": 3},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"has present", Has{Key: "age"}, true},
		{"has nil value", Has{Key: "empty"}, false},
		{"has missing", Has{Key: "nope"}, false},
		{"eq string", Eq{Key: "mood", Value: "happy"}, true},
		{"eq numeric cross-type", Eq{Key: "age", Value: float64(17)}, true},
		{"eq mismatch", Eq{Key: "mood", Value: "sad"}, false},
		{"gt true", Gt{Key: "age", Value: 16}, true},
		{"gt false", Gt{Key: "age", Value: 17}, false},
		{"gt non-numeric", Gt{Key: "mood", Value: 1}, false},
		{"completed contains", CompletedContains{Task: "get_name"}, true},
		{"completed missing", CompletedContains{Task: "get_age"}, false},
		{"plan index is", PlanIndexIs{Index: 2}, true},
		{"plan index gt", PlanIndexGt{Index: 1}, true},
		{"tone contains", ToneContains{Tone: "warm"}, true},
		{"attempts gt", AttemptsGt{Task: "get_age", N: 2}, true},
		{"not", Not{C: Has{Key: "age"}}, false},
		{"all", All{Has{Key: "age"}, Gt{Key: "age", Value: 10}}, true},
		{"all short", All{Has{Key: "age"}, Has{Key: "nope"}}, false},
		{"any", Any{Has{Key: "nope"}, Has{Key: "age"}}, true},
		{"literal", Literal(true), true},
	}
	for _, tt := range tests {
		if got := tt.cond.Eval(snap); got != tt.want {
			t.Errorf("%s: Eval = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEvaluateFiresAtMostOnce(t *testing.T) {
	tone := []string{}
	p := plan.New(plan.NewBlock(plan.NewTask("greet", "")))
	targets, _ := testTargets(p, &tone)

	e := NewEngine(&Adjustment{
		Name:      "warm_up",
		Condition: CompletedContains{Task: "get_name"},
		Actions:   []Action{ToneSet{Tones: []string{"warm"}}},
	})

	snap := Snapshot{Completed: []string{"get_name"}}

	fired := e.Evaluate(snap, targets)
	if len(fired) != 1 || fired[0] != "warm_up" {
		t.Fatalf("fired = %v", fired)
	}
	if len(tone) != 1 || tone[0] != "warm" {
		t.Errorf("tone = %v", tone)
	}

	// Condition still true on subsequent turns, but latched.
	for i := 0; i < 3; i++ {
		if fired := e.Evaluate(snap, targets); fired != nil {
			t.Fatalf("turn %d: fired = %v, want none", i, fired)
		}
	}
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	tone := []string{}
	p := plan.New(plan.NewBlock(plan.NewTask("a", "")))
	targets, st := testTargets(p, &tone)

	e := NewEngine(
		&Adjustment{Name: "first", Condition: Literal(true), Actions: []Action{StateSet{Key: "hit", Value: "first"}}},
		&Adjustment{Name: "second", Condition: Literal(true), Actions: []Action{StateSet{Key: "hit", Value: "second"}}},
	)

	fired := e.Evaluate(Snapshot{}, targets)
	if len(fired) != 1 || fired[0] != "first" {
		t.Fatalf("fired = %v", fired)
	}
	if got := st.Get("hit", nil); got != "first" {
		t.Errorf("state hit = %v", got)
	}

	// Second rule fires on the next evaluation, not in the same turn.
	fired = e.Evaluate(Snapshot{}, targets)
	if len(fired) != 1 || fired[0] != "second" {
		t.Fatalf("second evaluation fired = %v", fired)
	}
}

func TestPlanActionsBoundsSkipped(t *testing.T) {
	tone := []string{}
	p := plan.New(plan.NewBlock(plan.NewTask("a", "")))
	targets, _ := testTargets(p, &tone)

	// Out-of-range actions must be skipped, not panic or halt the rule.
	e := NewEngine(&Adjustment{
		Name:      "bad_jump",
		Condition: Literal(true),
		Actions:   []Action{PlanJump{Index: 42}, ToneAdd{Tone: "calm"}},
	})
	e.Evaluate(Snapshot{}, targets)

	if p.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex = %d after bad jump", p.CurrentIndex())
	}
	if len(tone) != 1 || tone[0] != "calm" {
		t.Errorf("tone = %v, later actions must still run", tone)
	}
}

func TestPlanInsertAction(t *testing.T) {
	tone := []string{}
	p := plan.New(plan.NewBlock(plan.NewTask("a", "")))
	targets, _ := testTargets(p, &tone)

	e := NewEngine(&Adjustment{
		Name:      "extend",
		Condition: Literal(true),
		Actions:   []Action{PlanInsertBlock{Index: 1, Tasks: []string{"extra"}}},
	})
	e.Evaluate(Snapshot{}, targets)

	if p.Len() != 2 {
		t.Fatalf("plan len = %d", p.Len())
	}
	if p.GetTask("extra") == nil {
		t.Error("inserted task not found")
	}
}

func TestToneAddNoDuplicates(t *testing.T) {
	tone := []string{"warm"}
	p := plan.New()
	targets, _ := testTargets(p, &tone)

	ToneAdd{Tone: "warm"}.Apply(targets)
	if len(tone) != 1 {
		t.Errorf("tone = %v", tone)
	}
}

func TestMarkFiredRestoresLatch(t *testing.T) {
	e := NewEngine(&Adjustment{Name: "r", Condition: Literal(true)})
	e.Get("r").MarkFired()

	if fired := e.Evaluate(Snapshot{}, nil); fired != nil {
		t.Errorf("fired = %v, want none after MarkFired", fired)
	}
	if got := e.FiredNames(); len(got) != 1 || got[0] != "r" {
		t.Errorf("FiredNames = %v", got)
	}
}
