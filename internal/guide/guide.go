// Package guide is the orchestration core: it owns the conversation state,
// plan, history, adjustment engine and tool executor for one session, and
// drives them through the per-turn protocol.
package guide

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dohr-michael/chatguide/internal/adjust"
	"github.com/dohr-michael/chatguide/internal/checkpoint"
	"github.com/dohr-michael/chatguide/internal/config"
	"github.com/dohr-michael/chatguide/internal/convo"
	"github.com/dohr-michael/chatguide/internal/events"
	"github.com/dohr-michael/chatguide/internal/model"
	"github.com/dohr-michael/chatguide/internal/plan"
	"github.com/dohr-michael/chatguide/internal/state"
	"github.com/dohr-michael/chatguide/internal/tools"
)

// Status is the execution state of a session.
type Status string

const (
	StatusIdle          Status = "idle"
	StatusProcessing    Status = "processing"
	StatusAwaitingInput Status = "awaiting_input"
	StatusWaitingTool   Status = "waiting_tool"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// TurnError records a non-fatal failure encountered during a turn.
type TurnError struct {
	Time    time.Time `json:"time"`
	Kind    string    `json:"kind"` // malformed | validation | tool | invoke
	Task    string    `json:"task,omitempty"`
	Tool    string    `json:"tool,omitempty"`
	Message string    `json:"message"`
}

// Progress summarizes how far the conversation has come.
type Progress struct {
	Completed   int     `json:"completed"`
	Total       int     `json:"total"`
	Percent     float64 `json:"percent"`
	CurrentTask string  `json:"current_task,omitempty"`
}

// Options are the optional collaborators for a Guide.
type Options struct {
	SessionID string
	Registry  *tools.Registry
	Bus       *events.Bus
	RawConfig []byte // original document, embedded in checkpoints on request
}

// Guide runs one guided conversation. Not safe for concurrent use; callers
// serialize turns per session.
type Guide struct {
	sessionID string
	doc       *config.Document
	state     *state.Store
	plan      *plan.Plan
	history   *convo.Context
	engine    *adjust.Engine
	executor  *tools.Executor
	registry  *tools.Registry
	invoker   model.Invoker
	bus       *events.Bus
	rawConfig []byte

	tone       []string
	status     Status
	turnErrors []TurnError
	metrics    checkpoint.Metrics

	// fired adjustment names restored from a checkpoint that have no
	// definition in the loaded config; retained so re-saving loses nothing.
	orphanFired []string
}

// New builds a Guide from a parsed conversation document.
func New(doc *config.Document, invoker model.Invoker, opts Options) *Guide {
	registry := opts.Registry
	if registry == nil {
		registry = tools.NewRegistry()
	}
	sessionID := opts.SessionID
	if sessionID == "" {
		sessionID = "sess_" + uuid.NewString()[:8]
	}

	return &Guide{
		sessionID: sessionID,
		doc:       doc,
		state:     state.New(doc.State),
		plan:      doc.BuildPlan(),
		history:   convo.NewContext(),
		engine:    doc.BuildEngine(),
		registry:  registry,
		executor:  tools.NewExecutor(registry, doc.Limits.InvokeTimeout),
		invoker:   invoker,
		bus:       opts.Bus,
		rawConfig: opts.RawConfig,
		tone:      append([]string(nil), doc.Tone...),
		status:    StatusIdle,
	}
}

// FromCheckpoint restores a session. doc may be nil when the checkpoint
// embeds its config; otherwise restoring without definitions degrades to
// unresolved placeholder tasks with a loud warning.
func FromCheckpoint(cp *checkpoint.Checkpoint, doc *config.Document, invoker model.Invoker, opts Options) (*Guide, error) {
	if doc == nil {
		if raw, ok := cp.Config["yaml"].(string); ok && raw != "" {
			parsed, err := config.Parse([]byte(raw))
			if err != nil {
				return nil, fmt.Errorf("parse embedded config: %w", err)
			}
			doc = parsed
			if opts.RawConfig == nil {
				opts.RawConfig = []byte(raw)
			}
		} else {
			slog.Warn("restoring checkpoint without config: tasks and adjustments will be unresolved placeholders",
				"session", cp.SessionID)
			doc = &config.Document{Tasks: map[string]config.TaskDef{}, State: map[string]any{}}
			config.ApplyDefaults(doc)
		}
	}

	opts.SessionID = cp.SessionID
	g := New(doc, invoker, opts)

	g.state = state.New(cp.State)
	g.history = convo.Restore(cp.Context.History)
	g.tone = append([]string(nil), cp.Tone...)
	g.metrics = cp.Metrics
	g.status = Status(cp.Execution.Status)
	if g.status == "" {
		g.status = StatusIdle
	}

	// Rebuild the plan from stored ids; definitions come from config.
	blocks := make([]*plan.Block, len(cp.Plan.Blocks))
	for i, ids := range cp.Plan.Blocks {
		tasks := make([]*plan.Task, len(ids))
		for j, id := range ids {
			t := doc.Task(id)
			if t.Unresolved {
				slog.Warn("checkpoint task has no definition in config, restoring as unresolved",
					"session", cp.SessionID, "task", id)
			}
			tasks[j] = t
		}
		blocks[i] = plan.NewBlock(tasks...)
	}
	g.plan = plan.New(blocks...)
	if cp.Plan.CurrentIndex > 0 {
		if err := g.plan.JumpTo(cp.Plan.CurrentIndex); err != nil {
			if cp.Plan.CurrentIndex == g.plan.Len() {
				for !g.plan.IsFinished() {
					g.plan.Advance()
				}
			} else {
				return nil, fmt.Errorf("restore plan index: %w", err)
			}
		}
	}

	for _, id := range cp.CompletedTaskIDs {
		t := g.plan.GetTask(id)
		if t == nil {
			slog.Warn("completed task id not present in restored plan", "session", cp.SessionID, "task", id)
			continue
		}
		if r, ok := cp.TaskResults[id]; ok {
			t.Complete(r.Key, r.Value)
		} else {
			t.CompleteAuto()
		}
	}
	for _, id := range cp.FailedTaskIDs {
		if t := g.plan.GetTask(id); t != nil {
			t.Fail()
		}
	}
	if cp.Execution.CurrentTask != "" && cp.Attempts > 0 {
		if t := g.plan.GetTask(cp.Execution.CurrentTask); t != nil {
			t.Attempts = cp.Attempts
		}
	}

	for _, name := range cp.FiredAdjustments {
		if rule := g.engine.Get(name); rule != nil {
			rule.MarkFired()
			continue
		}
		slog.Warn("fired adjustment has no definition in config, retaining name only",
			"session", cp.SessionID, "adjustment", name)
		g.orphanFired = append(g.orphanFired, name)
	}

	return g, nil
}

// Checkpoint captures the full resumable session document. includeConfig
// embeds the original config so the checkpoint can restore standalone.
func (g *Guide) Checkpoint(includeConfig bool) *checkpoint.Checkpoint {
	var completed, failed []string
	results := map[string]plan.TaskResult{}
	for _, t := range g.plan.AllTasks() {
		switch t.Status {
		case plan.TaskCompleted:
			completed = append(completed, t.ID)
			if t.Result != nil {
				results[t.ID] = *t.Result
			}
		case plan.TaskFailed:
			failed = append(failed, t.ID)
		}
	}

	cp := &checkpoint.Checkpoint{
		Version:   checkpoint.Version,
		Timestamp: time.Now().UTC(),
		SessionID: g.sessionID,
		State:     g.state.Snapshot(),
		Plan: checkpoint.PlanState{
			Blocks:       g.plan.BlockIDs(),
			CurrentIndex: g.plan.CurrentIndex(),
		},
		Tone:             append([]string(nil), g.tone...),
		CompletedTaskIDs: completed,
		FailedTaskIDs:    failed,
		TaskResults:      results,
		Context:          checkpoint.ContextState{History: g.history.History()},
		Execution: checkpoint.ExecutionState{
			CurrentTask: g.CurrentTaskID(),
			Status:      string(g.status),
		},
		FiredAdjustments: append(g.engine.FiredNames(), g.orphanFired...),
		Metrics:          g.metrics,
	}
	if t := g.currentTask(); t != nil {
		cp.Attempts = t.Attempts
	}
	if includeConfig && len(g.rawConfig) > 0 {
		cp.Config = map[string]any{"yaml": string(g.rawConfig)}
	}

	g.publish(events.EventCheckpointSaved, map[string]any{"tasks_completed": len(completed)})
	return cp
}

// SessionID returns the session identifier.
func (g *Guide) SessionID() string { return g.sessionID }

// Status returns the current execution status.
func (g *Guide) Status() Status { return g.status }

// IsFinished reports whether the plan is exhausted.
func (g *Guide) IsFinished() bool { return g.plan.IsFinished() }

// Metrics returns the cumulative session counters.
func (g *Guide) Metrics() checkpoint.Metrics { return g.metrics }

// TurnErrors returns the non-fatal errors recorded so far.
func (g *Guide) TurnErrors() []TurnError {
	return append([]TurnError(nil), g.turnErrors...)
}

// State returns a copy of the conversation state.
func (g *Guide) State() map[string]any { return g.state.Snapshot() }

// PendingUITools returns queued UI render requests.
func (g *Guide) PendingUITools() []tools.PendingUITool {
	return g.executor.PendingUITools()
}

func (g *Guide) currentTask() *plan.Task {
	block := g.plan.CurrentBlock()
	if block == nil {
		return nil
	}
	return block.FirstPending()
}

// CurrentTaskID returns the id of the first pending task in the current
// block, or "".
func (g *Guide) CurrentTaskID() string {
	if t := g.currentTask(); t != nil {
		return t.ID
	}
	return ""
}

// Progress reports completed/total tasks across the whole plan.
func (g *Guide) Progress() Progress {
	all := g.plan.AllTasks()
	p := Progress{Total: len(all), CurrentTask: g.CurrentTaskID()}
	for _, t := range all {
		if t.IsCompleted() {
			p.Completed++
		}
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}

// HandleToolResponse merges a UI tool's result into state and records it in
// the history so the next model call sees it. The caller follows up with an
// empty ProcessTurn to resume.
func (g *Guide) HandleToolResponse(toolID string, result map[string]any) error {
	if g.status == StatusComplete {
		return fmt.Errorf("conversation already complete")
	}
	g.executor.ResolvePending(toolID)
	g.state.Update(result, "tool:"+toolID)
	g.history.Add(convo.RoleUser, fmt.Sprintf("[%s result: %v]", toolID, result))
	g.setStatus(StatusAwaitingInput)
	return nil
}

func (g *Guide) setStatus(s Status) {
	if g.status == StatusComplete && s != StatusComplete {
		return
	}
	g.status = s
}

func (g *Guide) publish(eventType events.EventType, payload map[string]any) {
	if g.bus == nil {
		return
	}
	g.bus.Publish(events.NewEvent(eventType, g.sessionID, payload))
}

func (g *Guide) recordError(kind, task, tool, message string) {
	g.turnErrors = append(g.turnErrors, TurnError{
		Time:    time.Now().UTC(),
		Kind:    kind,
		Task:    task,
		Tool:    tool,
		Message: message,
	})
}
