// Package config loads and normalizes the YAML conversation document: the
// plan, task definitions, tones, guardrails, initial state, adjustment
// rules and runtime limits. All polymorphic shapes (string-or-object
// expects, string-or-list tone, list-or-map guardrails, shorthand action
// strings) are normalized exactly once here; the rest of the runtime never
// branches on raw config types.
package config

import (
	"strings"
	"time"

	"github.com/dohr-michael/chatguide/internal/adjust"
	"github.com/dohr-michael/chatguide/internal/plan"
)

// TaskDef is a normalized task definition.
type TaskDef struct {
	Description string
	Expects     []plan.ExpectDefinition
	Tools       []string
	Silent      bool
}

// AdjustmentDef is a normalized adjustment rule definition. Condition and
// Actions are already decoded into the closed AST.
type AdjustmentDef struct {
	Name      string
	Condition adjust.Condition
	Actions   []adjust.Action
}

// Limits are the runtime knobs with documented defaults.
type Limits struct {
	Retries       int           // extraction/malformed-output retry budget per turn
	SilentChain   int           // max consecutive silent tasks chained in one turn
	HistoryWindow int           // messages shown in the prompt
	InvokeTimeout time.Duration // per model call
}

// Document is the fully normalized conversation configuration.
type Document struct {
	Language    string
	Plan        [][]string
	Tasks       map[string]TaskDef
	Tones       map[string]string
	Tone        []string
	Guardrails  string
	State       map[string]any
	Adjustments []AdjustmentDef
	Limits      Limits
}

// Task builds a fresh pending Task from its definition. Unknown ids yield
// an unresolved placeholder so restores and adjustment-built blocks never
// fail outright.
func (d *Document) Task(id string) *plan.Task {
	def, ok := d.Tasks[id]
	if !ok {
		t := plan.NewTask(id, "")
		t.Unresolved = true
		return t
	}
	t := plan.NewTask(id, def.Description)
	t.Expects = append([]plan.ExpectDefinition(nil), def.Expects...)
	t.Tools = append([]string(nil), def.Tools...)
	t.Silent = def.Silent
	return t
}

// BuildEngine instantiates the adjustment engine from the decoded rules.
func (d *Document) BuildEngine() *adjust.Engine {
	engine := adjust.NewEngine()
	for _, def := range d.Adjustments {
		engine.Add(&adjust.Adjustment{
			Name:      def.Name,
			Condition: def.Condition,
			Actions:   def.Actions,
		})
	}
	return engine
}

// BuildPlan instantiates the plan with fresh pending tasks.
func (d *Document) BuildPlan() *plan.Plan {
	blocks := make([]*plan.Block, len(d.Plan))
	for i, ids := range d.Plan {
		tasks := make([]*plan.Task, len(ids))
		for j, id := range ids {
			tasks[j] = d.Task(id)
		}
		blocks[i] = plan.NewBlock(tasks...)
	}
	return plan.New(blocks...)
}

// ToneText joins the active tone names into the prompt's tone section using
// their configured descriptions. Names without a description are used
// verbatim.
func (d *Document) ToneText(active []string) string {
	parts := make([]string, 0, len(active))
	for _, name := range active {
		if text, ok := d.Tones[name]; ok && text != "" {
			parts = append(parts, text)
			continue
		}
		parts = append(parts, name)
	}
	return strings.Join(parts, "\n")
}

// ApplyDefaults fills zero-value limits and nil maps. Parse calls this;
// exported for callers that construct a Document directly.
func ApplyDefaults(d *Document) {
	if d.Limits.Retries == 0 {
		d.Limits.Retries = 2
	}
	if d.Limits.SilentChain == 0 {
		d.Limits.SilentChain = 8
	}
	if d.Limits.HistoryWindow == 0 {
		d.Limits.HistoryWindow = 10
	}
	if d.Limits.InvokeTimeout == 0 {
		d.Limits.InvokeTimeout = 30 * time.Second
	}
	if d.Tasks == nil {
		d.Tasks = map[string]TaskDef{}
	}
	if d.State == nil {
		d.State = map[string]any{}
	}
}
