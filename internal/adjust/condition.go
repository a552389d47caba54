// Package adjust implements reactive condition→action rules that can alter
// the plan, tone or state mid-conversation. Conditions are a closed boolean
// AST evaluated by a tree walker; there is deliberately no way to execute
// arbitrary code from a rule.
package adjust

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Snapshot is the read-only view conditions are evaluated against.
type Snapshot struct {
	State     map[string]any
	PlanIndex int
	Completed []string
	Tone      []string
	Attempts  map[string]int
}

// Condition is a node in the boolean expression tree.
type Condition interface {
	Eval(s Snapshot) bool
}

// Literal is a constant condition.
type Literal bool

func (l Literal) Eval(Snapshot) bool { return bool(l) }

// All is true when every child is true. An empty All is true.
type All []Condition

func (a All) Eval(s Snapshot) bool {
	for _, c := range a {
		if !c.Eval(s) {
			return false
		}
	}
	return true
}

// Any is true when at least one child is true.
type Any []Condition

func (a Any) Eval(s Snapshot) bool {
	for _, c := range a {
		if c.Eval(s) {
			return true
		}
	}
	return false
}

// Not negates its child.
type Not struct{ C Condition }

func (n Not) Eval(s Snapshot) bool { return !n.C.Eval(s) }

// Has is true when the state key holds a non-nil value.
type Has struct{ Key string }

func (h Has) Eval(s Snapshot) bool {
	v, ok := s.State[h.Key]
	return ok && v != nil
}

// Eq compares a state value against a constant. Numbers compare
// numerically regardless of representation; everything else compares by
// string form.
type Eq struct {
	Key   string
	Value any
}

func (e Eq) Eval(s Snapshot) bool {
	return looseEqual(s.State[e.Key], e.Value)
}

// Gt is true when the state value parses as a number greater than Value.
// Missing or non-numeric values evaluate false.
type Gt struct {
	Key   string
	Value float64
}

func (g Gt) Eval(s Snapshot) bool {
	n, ok := asNumber(s.State[g.Key])
	return ok && n > g.Value
}

// CompletedContains is true when the task id is among the completed tasks.
type CompletedContains struct{ Task string }

func (c CompletedContains) Eval(s Snapshot) bool {
	return slices.Contains(s.Completed, c.Task)
}

// PlanIndexIs matches the current block index exactly.
type PlanIndexIs struct{ Index int }

func (p PlanIndexIs) Eval(s Snapshot) bool { return s.PlanIndex == p.Index }

// PlanIndexGt is true when the cursor has moved past Index.
type PlanIndexGt struct{ Index int }

func (p PlanIndexGt) Eval(s Snapshot) bool { return s.PlanIndex > p.Index }

// ToneContains is true when the named tone is active.
type ToneContains struct{ Tone string }

func (t ToneContains) Eval(s Snapshot) bool {
	return slices.Contains(s.Tone, t.Tone)
}

// AttemptsGt is true when the task's extraction attempt count exceeds N.
type AttemptsGt struct {
	Task string
	N    int
}

func (a AttemptsGt) Eval(s Snapshot) bool { return s.Attempts[a.Task] > a.N }

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	if an, aok := asNumber(a); aok {
		if bn, bok := asNumber(b); bok {
			return an == bn
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}
