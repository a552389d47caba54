// Package model defines the contract with the external language model. The
// engine treats the provider as a black box: one prompt string in, one
// structured JSON reply out. Provider identity is opaque configuration.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// TaskResult is one extracted value in a model reply.
type TaskResult struct {
	TaskID string `json:"task_id"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	Tool    string   `json:"tool"`
	Options []string `json:"options,omitempty"`
}

// Reply is the structured envelope every model response must match.
type Reply struct {
	AssistantReply string       `json:"assistant_reply"`
	TaskResults    []TaskResult `json:"task_results"`
	Tools          []ToolCall   `json:"tools"`
}

// MalformedError reports a response that is not valid JSON or does not
// match the reply schema. The turn processor retries these with a
// corrective instruction.
type MalformedError struct {
	Reason string
}

func (e *MalformedError) Error() string {
	return "malformed model output: " + e.Reason
}

// ParseReply decodes raw model output into a Reply. Models sometimes emit
// duplicate task_results; entries are deduplicated by (task_id, key),
// keeping the first. Code fences around the JSON are tolerated.
func ParseReply(raw []byte) (*Reply, error) {
	text := strings.TrimSpace(string(raw))
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return nil, &MalformedError{Reason: "empty response"}
	}

	var reply Reply
	dec := json.NewDecoder(strings.NewReader(text))
	if err := dec.Decode(&reply); err != nil {
		return nil, &MalformedError{Reason: err.Error()}
	}

	seen := make(map[string]bool)
	deduped := reply.TaskResults[:0]
	for _, tr := range reply.TaskResults {
		if tr.Key == "" {
			continue
		}
		pair := tr.TaskID + "\x00" + tr.Key
		if seen[pair] {
			continue
		}
		seen[pair] = true
		deduped = append(deduped, tr)
	}
	reply.TaskResults = deduped

	return &reply, nil
}

// Invoker is the black-box model call. Implementations must respect ctx
// cancellation; the engine applies its own timeout and retry policy.
type Invoker interface {
	Invoke(ctx context.Context, prompt string) (*Reply, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, prompt string) (*Reply, error)

func (f InvokerFunc) Invoke(ctx context.Context, prompt string) (*Reply, error) {
	return f(ctx, prompt)
}

// ScriptedInvoker replays a fixed queue of raw responses. Used in tests and
// by the offline chat command.
type ScriptedInvoker struct {
	Responses []string
	Prompts   []string // prompts received, in order
	next      int
}

// Invoke returns the next scripted response, parsing it like a live reply.
func (s *ScriptedInvoker) Invoke(ctx context.Context, prompt string) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.Prompts = append(s.Prompts, prompt)
	if s.next >= len(s.Responses) {
		return nil, fmt.Errorf("scripted invoker exhausted after %d responses", len(s.Responses))
	}
	raw := s.Responses[s.next]
	s.next++
	return ParseReply([]byte(raw))
}
