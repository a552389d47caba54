package adjust

import (
	"log/slog"
)

// Adjustment is a named rule pairing a condition with a list of actions.
// It fires at most once per conversation: the fired flag latches and the
// rule is never re-evaluated (until an explicit Reset).
type Adjustment struct {
	Name      string
	Condition Condition
	Actions   []Action
	fired     bool
}

// Fired reports whether the rule has fired.
func (a *Adjustment) Fired() bool { return a.fired }

// Reset re-arms the rule.
func (a *Adjustment) Reset() { a.fired = false }

// MarkFired latches the rule without executing actions. Used when restoring
// fired flags from a checkpoint.
func (a *Adjustment) MarkFired() { a.fired = true }

// Engine evaluates adjustments in declaration order.
type Engine struct {
	rules []*Adjustment
}

// NewEngine creates an engine over the given rules.
func NewEngine(rules ...*Adjustment) *Engine {
	return &Engine{rules: rules}
}

// Add appends a rule.
func (e *Engine) Add(a *Adjustment) {
	e.rules = append(e.rules, a)
}

// Rules returns the rules in declaration order.
func (e *Engine) Rules() []*Adjustment { return e.rules }

// Get returns the rule with the given name, or nil.
func (e *Engine) Get(name string) *Adjustment {
	for _, r := range e.rules {
		if r.Name == name {
			return r
		}
	}
	return nil
}

// FiredNames returns the names of all rules that have fired.
func (e *Engine) FiredNames() []string {
	var out []string
	for _, r := range e.rules {
		if r.fired {
			out = append(out, r.Name)
		}
	}
	return out
}

// Evaluate scans rules in declaration order, skipping fired ones, and
// executes the actions of the first rule whose condition holds against the
// snapshot. First-match-wins: at most one rule fires per call, which keeps a
// single turn from cascading rule storms. Returns the names of fired rules
// (empty or one element).
func (e *Engine) Evaluate(snap Snapshot, targets *Targets) []string {
	for _, r := range e.rules {
		if r.fired {
			continue
		}
		if r.Condition == nil || !r.Condition.Eval(snap) {
			continue
		}
		slog.Debug("adjustment firing", "name", r.Name, "actions", len(r.Actions))
		for _, action := range r.Actions {
			action.Apply(targets)
		}
		r.fired = true
		return []string{r.Name}
	}
	return nil
}

// ResetAll re-arms every rule.
func (e *Engine) ResetAll() {
	for _, r := range e.rules {
		r.fired = false
	}
}
