package guide

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dohr-michael/chatguide/internal/adjust"
	"github.com/dohr-michael/chatguide/internal/convo"
	"github.com/dohr-michael/chatguide/internal/events"
	"github.com/dohr-michael/chatguide/internal/model"
	"github.com/dohr-michael/chatguide/internal/plan"
	"github.com/dohr-michael/chatguide/internal/prompt"
	"github.com/dohr-michael/chatguide/internal/tools"
)

const degradedReply = "I ran into an internal error processing that. Could you rephrase, or try again?"

// TurnResult is what one user turn produced.
type TurnResult struct {
	Reply            string                `json:"reply"`
	Status           Status                `json:"status"`
	Degraded         bool                  `json:"degraded,omitempty"`
	CompletedTasks   []string              `json:"completed_tasks,omitempty"`
	FiredAdjustments []string              `json:"fired_adjustments,omitempty"`
	PendingUITools   []tools.PendingUITool `json:"pending_ui_tools,omitempty"`
	Errors           []TurnError           `json:"errors,omitempty"`
}

// ProcessTurn runs one full turn: append the user message, invoke the model
// with bounded retries, apply extractions, run tools, auto-complete,
// evaluate adjustments, advance the plan, and chain through silent tasks.
// The turn runs to completion before the next message is accepted. An empty
// userMsg resumes processing without a new user message (tool responses,
// conversation start).
func (g *Guide) ProcessTurn(ctx context.Context, userMsg string) (*TurnResult, error) {
	if g.status == StatusComplete {
		return nil, fmt.Errorf("conversation already complete")
	}

	g.setStatus(StatusProcessing)
	g.metrics.Turns++
	g.publish(events.EventTurnStarted, map[string]any{"turn": g.metrics.Turns})

	if userMsg != "" {
		g.history.Add(convo.RoleUser, userMsg)
	}

	res := &TurnResult{}
	errBefore := len(g.turnErrors)

	chained := 0
	for {
		if g.plan.IsFinished() {
			break
		}

		current := g.currentTask()
		if current == nil {
			// Current block fully settled outside a turn (restore edge).
			g.plan.Advance()
			continue
		}

		reply, degraded := g.runTask(ctx, current, res)
		if degraded {
			res.Degraded = true
			res.Reply = degradedReply
			g.history.Add(convo.RoleAssistant, degradedReply)
			g.metrics.DegradedTurns++
			g.publish(events.EventTurnDegraded, map[string]any{"task": current.ID})
			break
		}

		g.runTools(ctx, current, reply, res)
		g.autoComplete(res)
		g.evaluateAdjustments(res)

		// Adjustments may have rewritten the plan; settle on the block that
		// is current now.
		if block := g.plan.CurrentBlock(); block != nil && block.IsComplete() {
			g.plan.Advance()
		}
		// Explicit jumps can legitimately skip pending blocks; surface it
		// rather than fail the turn.
		if err := g.plan.CheckInvariants(); err != nil {
			slog.Warn("plan invariant violated", "session", g.sessionID, "error", err)
		}

		if current.Silent {
			chained++
			if g.plan.IsFinished() {
				break
			}
			if chained >= g.doc.Limits.SilentChain {
				slog.Warn("silent task chain cap reached", "session", g.sessionID, "chained", chained)
				res.Degraded = true
				res.Reply = degradedReply
				g.history.Add(convo.RoleAssistant, degradedReply)
				g.metrics.DegradedTurns++
				g.publish(events.EventTurnDegraded, map[string]any{"reason": "silent chain cap"})
				break
			}
			continue
		}

		res.Reply = reply.AssistantReply
		g.history.Add(convo.RoleAssistant, reply.AssistantReply)
		break
	}

	switch {
	case g.plan.IsFinished():
		g.setStatus(StatusComplete)
	case g.executor.HasPendingUITools():
		g.setStatus(StatusWaitingTool)
	default:
		g.setStatus(StatusAwaitingInput)
	}

	res.Status = g.status
	res.PendingUITools = g.executor.PendingUITools()
	res.Errors = append([]TurnError(nil), g.turnErrors[errBefore:]...)
	g.publish(events.EventTurnCompleted, map[string]any{
		"status":    string(g.status),
		"completed": res.CompletedTasks,
	})
	return res, nil
}

// runTask invokes the model for one task under the retry budget. It returns
// the accepted reply, or degraded=true when the budget is exhausted on
// malformed output or the transport fails.
func (g *Guide) runTask(ctx context.Context, current *plan.Task, res *TurnResult) (*model.Reply, bool) {
	var directives []string

	for attempt := 0; ; attempt++ {
		p := g.buildPrompt(current, directives)

		ictx, cancel := context.WithTimeout(ctx, g.doc.Limits.InvokeTimeout)
		reply, err := g.invoker.Invoke(ictx, p)
		cancel()
		g.metrics.ModelCalls++

		if err != nil {
			var malformed *model.MalformedError
			if errors.As(err, &malformed) {
				g.recordError("malformed", current.ID, "", malformed.Reason)
				if attempt < g.doc.Limits.Retries {
					g.metrics.Retries++
					directives = []string{"Your previous response was not valid JSON matching the required schema. Return only the JSON object, nothing else."}
					continue
				}
				return nil, true
			}
			g.recordError("invoke", current.ID, "", model.ClassifyError(err).Error())
			return nil, true
		}

		reason := g.applyExtractions(current, reply, res)
		if reason == "" {
			return reply, false
		}

		current.Attempts++
		g.recordError("validation", current.ID, "", reason)
		if attempt < g.doc.Limits.Retries {
			g.metrics.Retries++
			directives = []string{fmt.Sprintf(
				"The previous value was rejected: %s. Apologize briefly and ask again for a valid value.", reason)}
			continue
		}

		// Budget exhausted: force-settle so the conversation stays live.
		g.forceComplete(current, res)
		return reply, false
	}
}

// applyExtractions implements the extraction protocol for the current task.
// Exactly one entry per expected key: missing entries are synthesized as
// null, keys outside the task's expectations are dropped. All candidate
// values are validated before anything is written; the first invalid value
// aborts the write and its reason is returned for the retry prompt.
func (g *Guide) applyExtractions(current *plan.Task, reply *model.Reply, res *TurnResult) string {
	allowed := map[string]bool{}
	for _, e := range current.Expects {
		allowed[e.Key] = true
		if e.Confirm {
			allowed[e.ConfirmKey()] = true
		}
	}

	values := map[string]any{}
	for _, tr := range reply.TaskResults {
		if tr.TaskID != "" && tr.TaskID != current.ID {
			slog.Debug("dropping result for non-current task", "task", tr.TaskID, "key", tr.Key)
			continue
		}
		if !allowed[tr.Key] {
			slog.Debug("dropping unexpected key", "task", current.ID, "key", tr.Key)
			continue
		}
		values[tr.Key] = tr.Value
	}
	for _, e := range current.Expects {
		if _, ok := values[e.Key]; !ok {
			values[e.Key] = nil // synthesized
		}
	}

	for _, e := range current.Expects {
		v := values[e.Key]
		if v == nil {
			continue
		}
		if ok, reason := e.Validate(v); !ok {
			return reason
		}
	}

	var lastKey string
	var lastValue any
	for _, e := range current.Expects {
		if v := values[e.Key]; v != nil {
			g.state.Set(e.Key, v, current.ID)
		}
		if e.Confirm {
			if v, ok := values[e.ConfirmKey()]; ok && v != nil {
				g.state.Set(e.ConfirmKey(), v, current.ID)
			}
		}
	}

	complete := len(current.Expects) > 0
	for _, e := range current.Expects {
		v := g.state.Get(e.Key, nil)
		if v == nil {
			complete = false
			break
		}
		if e.Confirm && !truthy(g.state.Get(e.ConfirmKey(), nil)) {
			complete = false
			break
		}
		lastKey, lastValue = e.Key, v
	}
	if complete {
		g.completeTask(current, lastKey, lastValue, res)
	}
	return ""
}

// forceComplete settles a task after the retry budget is spent: with any
// usable value already in state it completes, otherwise it fails. Either
// way the plan keeps moving.
func (g *Guide) forceComplete(current *plan.Task, res *TurnResult) {
	for _, e := range current.Expects {
		if v := g.state.Get(e.Key, nil); v != nil {
			slog.Warn("force-completing task with partial data",
				"session", g.sessionID, "task", current.ID, "key", e.Key)
			g.completeTask(current, e.Key, v, res)
			return
		}
	}
	slog.Warn("failing task after exhausted retries", "session", g.sessionID, "task", current.ID)
	current.Fail()
}

func (g *Guide) completeTask(t *plan.Task, key string, value any, res *TurnResult) {
	t.Complete(key, value)
	g.metrics.TasksCompleted++
	res.CompletedTasks = append(res.CompletedTasks, t.ID)
	g.publish(events.EventTaskCompleted, map[string]any{"task": t.ID, "key": key})
}

// runTools executes the model's tool calls, restricted to tools declared on
// the current block's tasks. Function results merge into state; failures
// are logged and the turn proceeds.
func (g *Guide) runTools(ctx context.Context, current *plan.Task, reply *model.Reply, res *TurnResult) {
	if len(reply.Tools) == 0 {
		return
	}

	var declared []string
	if block := g.plan.CurrentBlock(); block != nil {
		for _, t := range block.Tasks {
			declared = append(declared, t.Tools...)
		}
	}

	for _, call := range reply.Tools {
		if !slices.Contains(declared, call.Tool) {
			slog.Warn("model requested undeclared tool", "session", g.sessionID, "tool", call.Tool)
			continue
		}
		g.metrics.ToolCalls++
		g.publish(events.EventToolCall, map[string]any{"tool": call.Tool, "task": current.ID})

		out, err := g.executor.Execute(ctx, call.Tool, call.Options)
		if err != nil {
			g.recordError("tool", current.ID, call.Tool, err.Error())
			g.publish(events.EventToolError, map[string]any{"tool": call.Tool, "error": err.Error()})
			continue
		}
		if out != nil {
			g.state.Update(out, "tool:"+call.Tool)
		}
	}
}

// autoComplete settles pending tasks with no expectations in the current
// block. Runs after extraction so adjustments observe the final state.
func (g *Guide) autoComplete(res *TurnResult) {
	block := g.plan.CurrentBlock()
	if block == nil {
		return
	}
	for _, t := range block.PendingTasks() {
		if len(t.Expects) == 0 {
			t.CompleteAuto()
			g.metrics.TasksCompleted++
			res.CompletedTasks = append(res.CompletedTasks, t.ID)
			g.publish(events.EventTaskCompleted, map[string]any{"task": t.ID})
		}
	}
}

func (g *Guide) evaluateAdjustments(res *TurnResult) {
	attempts := map[string]int{}
	for _, t := range g.plan.AllTasks() {
		attempts[t.ID] = t.Attempts
	}
	snap := adjust.Snapshot{
		State:     g.state.Snapshot(),
		PlanIndex: g.plan.CurrentIndex(),
		Completed: g.plan.CompletedIDs(),
		Tone:      g.tone,
		Attempts:  attempts,
	}
	targets := &adjust.Targets{
		State:       g.state,
		Plan:        g.plan,
		Tone:        &g.tone,
		TaskFactory: g.doc.Task,
	}

	fired := g.engine.Evaluate(snap, targets)
	for _, name := range fired {
		g.metrics.AdjustmentsFired++
		g.publish(events.EventAdjustmentFired, map[string]any{"adjustment": name})
	}
	res.FiredAdjustments = append(res.FiredAdjustments, fired...)
}

// buildPrompt snapshots the session into a prompt view for the given task.
func (g *Guide) buildPrompt(current *plan.Task, directives []string) string {
	var pending []*plan.Task
	if block := g.plan.CurrentBlock(); block != nil {
		pending = block.PendingTasks()
	}

	toolDescs := map[string]string{}
	for _, id := range g.registry.IDs() {
		if def := g.registry.Get(id); def != nil {
			toolDescs[id] = def.Description
		}
	}

	view := prompt.View{
		Language:         g.doc.Language,
		History:          g.history.Window(g.doc.Limits.HistoryWindow),
		State:            g.state.Snapshot(),
		Guardrails:       g.state.ResolveTemplate(g.doc.Guardrails).(string),
		CurrentTask:      current,
		PendingTasks:     pending,
		CompletedIDs:     g.plan.CompletedIDs(),
		NextBlockTask:    g.plan.NextBlockPreview(),
		ToneText:         g.doc.ToneText(g.tone),
		RetryDirectives:  directives,
		ToolDescriptions: toolDescs,
	}
	if current != nil {
		view.Attempts = current.Attempts
	}
	if recent := g.state.Audit().Recent(3); len(recent) > 0 {
		view.RecentExtractions = recent
	}
	return prompt.Build(view)
}

// BuildPrompt returns the exact prompt the next model call would receive.
// Debug surface; has no side effects.
func (g *Guide) BuildPrompt() string {
	return g.buildPrompt(g.currentTask(), nil)
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "no"
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return true
}
