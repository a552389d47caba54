// Package prompt assembles the per-turn model prompt. Build is a pure
// function of its View: no I/O, no mutation, byte-identical output for
// identical inputs. That determinism is what makes "show me the exact
// prompt" debugging and golden tests possible.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dohr-michael/chatguide/internal/convo"
	"github.com/dohr-michael/chatguide/internal/plan"
	"github.com/dohr-michael/chatguide/internal/state"
)

const currentTaskMarker = ">>> CURRENT TASK (ASK THIS FIRST) <<<"

// View carries everything a single prompt depends on. Callers snapshot the
// conversation into a View; Build never reaches back into live structures.
type View struct {
	Language          string
	History           []convo.Message
	State             map[string]any
	Guardrails        string
	CurrentTask       *plan.Task
	Attempts          int
	PendingTasks      []*plan.Task
	CompletedIDs      []string
	NextBlockTask     *plan.Task
	ToneText          string
	RetryDirectives   []string
	RecentExtractions []state.AuditEntry
	ToolDescriptions  map[string]string
}

// Build renders the prompt.
func Build(v View) string {
	var sb strings.Builder

	sb.WriteString(languageLine(v.Language))
	sb.WriteString("\n\nCONVERSATION HISTORY:\n")
	sb.WriteString(formatHistory(v.History))

	sb.WriteString("\n\nCURRENT STATE:\n")
	sb.WriteString(formatState(v.State))

	if v.Guardrails != "" {
		sb.WriteString("\n\nGUARDRAILS:\n")
		sb.WriteString(v.Guardrails)
	}

	sb.WriteString("\n\nCURRENT TASKS:\n")
	sb.WriteString(formatTasks(v))

	if v.NextBlockTask != nil {
		sb.WriteString("\n\nUP NEXT (do not start yet, mention only for a smooth hand-off): ")
		sb.WriteString(v.NextBlockTask.ID)
	}

	sb.WriteString("\n\nTONE:\n")
	if v.ToneText != "" {
		sb.WriteString(v.ToneText)
	} else {
		sb.WriteString("Natural and helpful")
	}

	if len(v.RecentExtractions) > 0 {
		sb.WriteString("\n\nRECENTLY EXTRACTED (for correction context):\n")
		sb.WriteString(formatExtractions(v.RecentExtractions))
	}

	for _, d := range v.RetryDirectives {
		sb.WriteString("\n\nSYSTEM: ")
		sb.WriteString(d)
	}

	sb.WriteString("\n\n")
	sb.WriteString(outputContract)

	return sb.String()
}

func languageLine(lang string) string {
	if lang == "" || lang == "en" {
		return "Speak naturally."
	}
	return fmt.Sprintf("Speak naturally, always in language %q.", lang)
}

func formatHistory(history []convo.Message) string {
	if len(history) == 0 {
		return "(no messages yet)"
	}
	lines := make([]string, len(history))
	for i, m := range history {
		lines[i] = m.Role + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

func formatState(st map[string]any) string {
	if len(st) == 0 {
		return "(empty)"
	}
	keys := make([]string, 0, len(st))
	for k := range st {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = fmt.Sprintf("- %s: %v", k, st[k])
	}
	return strings.Join(lines, "\n")
}

func formatTasks(v View) string {
	if len(v.PendingTasks) == 0 {
		return "(none)"
	}

	var lines []string
	if len(v.PendingTasks) > 1 && v.CurrentTask != nil {
		lines = append(lines, fmt.Sprintf(
			"IMPORTANT: you have %d tasks in this block. Focus on %q first (marked below); move on only once it is done.",
			len(v.PendingTasks), v.CurrentTask.ID))
	}

	for _, t := range v.PendingTasks {
		label := "\nTask: " + t.ID
		if v.CurrentTask != nil && t.ID == v.CurrentTask.ID {
			label += " " + currentTaskMarker
			if v.Attempts > 0 {
				label += fmt.Sprintf(" (attempt %d)", v.Attempts+1)
			}
		}
		lines = append(lines, label)
		lines = append(lines, "Description: "+t.Description)

		if keys := t.ExpectedKeys(); len(keys) > 0 {
			lines = append(lines, "Expected to collect: "+strings.Join(keys, ", "))
		}
		for _, e := range t.Expects {
			if hint := expectHint(e); hint != "" {
				lines = append(lines, hint)
			}
		}
		if len(t.Tools) > 0 {
			lines = append(lines, "Available tools:")
			for _, toolID := range t.Tools {
				if desc := v.ToolDescriptions[toolID]; desc != "" {
					lines = append(lines, "  - "+toolID+": "+desc)
				} else {
					lines = append(lines, "  - "+toolID)
				}
			}
		}
	}

	return strings.Join(lines, "\n")
}

func expectHint(e plan.ExpectDefinition) string {
	switch e.Type {
	case plan.ExpectNumber:
		switch {
		case e.Min != nil && e.Max != nil:
			return fmt.Sprintf("%s must be a number between %v and %v.", e.Key, *e.Min, *e.Max)
		case e.Min != nil:
			return fmt.Sprintf("%s must be a number of at least %v.", e.Key, *e.Min)
		case e.Max != nil:
			return fmt.Sprintf("%s must be a number of at most %v.", e.Key, *e.Max)
		default:
			return fmt.Sprintf("%s must be a number. Extract any number the user gives, even a bare digit.", e.Key)
		}
	case plan.ExpectEnum:
		if len(e.Choices) > 0 {
			return fmt.Sprintf("%s must be one of: %s.", e.Key, strings.Join(e.Choices, ", "))
		}
	}
	return ""
}

func formatExtractions(entries []state.AuditEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		src := e.SourceTask
		if src == "" {
			src = "unknown"
		}
		lines[i] = fmt.Sprintf("- %s: %v -> %v (%s)", e.Key, e.Old, e.New, src)
	}
	return strings.Join(lines, "\n")
}

const outputContract = `OUTPUT FORMAT:
Respond with JSON matching this schema:
{
  "assistant_reply": "Your natural response to the user",
  "task_results": [
    {"task_id": "task_name", "key": "state_variable_name", "value": "extracted_value"}
  ],
  "tools": [
    {"tool": "tool_id", "options": ["option1", "option2"]}
  ]
}

CRITICAL RULES:
1. Respond naturally in assistant_reply.
2. Each task_result extracts ONE piece of data. Never include duplicate entries with the same key.
3. Before asking any question, check whether the user's last message already answers the current task. If so, extract it immediately, acknowledge briefly, and ask the next question instead of repeating.
4. Only include tools explicitly listed for the current tasks.
5. Strictly follow the tone guidelines above.
6. When several tasks are listed, always work on the one marked ` + currentTaskMarker + ` first.
7. Return only the JSON object. No prose outside it.`
