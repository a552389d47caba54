package adjust

import (
	"log/slog"

	"github.com/dohr-michael/chatguide/internal/plan"
	"github.com/dohr-michael/chatguide/internal/state"
)

// Targets bundles the mutable structures actions operate on. TaskFactory
// resolves a task id into a Task (from loaded definitions, or an unresolved
// placeholder) when an action builds new blocks.
type Targets struct {
	State       *state.Store
	Plan        *plan.Plan
	Tone        *[]string
	TaskFactory func(id string) *plan.Task
}

func (t *Targets) buildBlock(ids []string) *plan.Block {
	tasks := make([]*plan.Task, len(ids))
	for i, id := range ids {
		tasks[i] = t.TaskFactory(id)
	}
	return plan.NewBlock(tasks...)
}

// Action is a single typed mutation executed when a rule fires. Apply is
// total: out-of-range plan indices are warned and skipped, never raised out
// of the engine.
type Action interface {
	Apply(t *Targets)
}

// PlanJump moves the plan cursor.
type PlanJump struct {
	Index int `json:"index"`
}

func (a PlanJump) Apply(t *Targets) {
	if err := t.Plan.JumpTo(a.Index); err != nil {
		slog.Warn("adjustment action skipped", "action", "plan.jump_to", "error", err)
	}
}

// PlanInsertBlock inserts a block of tasks at an index.
type PlanInsertBlock struct {
	Index int      `json:"index"`
	Tasks []string `json:"tasks"`
}

func (a PlanInsertBlock) Apply(t *Targets) {
	if err := t.Plan.InsertBlock(a.Index, t.buildBlock(a.Tasks)); err != nil {
		slog.Warn("adjustment action skipped", "action", "plan.insert_block", "error", err)
	}
}

// PlanRemoveBlock removes the block at an index.
type PlanRemoveBlock struct {
	Index int `json:"index"`
}

func (a PlanRemoveBlock) Apply(t *Targets) {
	if err := t.Plan.RemoveBlock(a.Index); err != nil {
		slog.Warn("adjustment action skipped", "action", "plan.remove_block", "error", err)
	}
}

// PlanReplaceBlock replaces the block at an index.
type PlanReplaceBlock struct {
	Index int      `json:"index"`
	Tasks []string `json:"tasks"`
}

func (a PlanReplaceBlock) Apply(t *Targets) {
	if err := t.Plan.ReplaceBlock(a.Index, t.buildBlock(a.Tasks)); err != nil {
		slog.Warn("adjustment action skipped", "action", "plan.replace_block", "error", err)
	}
}

// ToneSet replaces the active tone list.
type ToneSet struct {
	Tones []string `json:"tones"`
}

func (a ToneSet) Apply(t *Targets) {
	*t.Tone = append([]string(nil), a.Tones...)
}

// ToneAdd appends a tone if not already active.
type ToneAdd struct {
	Tone string `json:"tone"`
}

func (a ToneAdd) Apply(t *Targets) {
	if a.Tone == "" {
		return
	}
	for _, existing := range *t.Tone {
		if existing == a.Tone {
			return
		}
	}
	*t.Tone = append(*t.Tone, a.Tone)
}

// StateSet writes a key/value into state, attributed to the adjustment
// engine in the audit trail.
type StateSet struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

func (a StateSet) Apply(t *Targets) {
	if a.Key == "" {
		return
	}
	t.State.Set(a.Key, a.Value, "adjustment")
}
