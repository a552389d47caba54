package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// PendingUITool is a render request queued by a UI-typed tool, consumed by
// the caller (web/chat front end) between turns.
type PendingUITool struct {
	Tool    string   `json:"tool"`
	Options []string `json:"options,omitempty"`
}

// Executor runs tools from a registry. UI tools never execute a handler;
// they are queued for the caller to render.
type Executor struct {
	registry *Registry
	timeout  time.Duration
	pending  []PendingUITool
}

// NewExecutor creates an executor with a per-call timeout for function
// tools. A zero timeout means no per-call limit beyond ctx.
func NewExecutor(registry *Registry, timeout time.Duration) *Executor {
	return &Executor{registry: registry, timeout: timeout}
}

// Execute runs the tool with the given args. Function tools return a map to
// be merged into state; UI tools return nil and enqueue a render request.
// Unknown tools and handler failures return an error; the caller treats
// these as non-fatal turn events.
func (e *Executor) Execute(ctx context.Context, toolID string, options []string) (map[string]any, error) {
	def := e.registry.Get(toolID)
	if def == nil {
		return nil, fmt.Errorf("unknown tool %q", toolID)
	}

	if def.Kind == KindUI {
		e.pending = append(e.pending, PendingUITool{Tool: toolID, Options: options})
		slog.Debug("ui tool queued", "tool", toolID)
		return nil, nil
	}

	if def.Handler == nil {
		return nil, fmt.Errorf("tool %q has no handler", toolID)
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := map[string]any{}
	if len(options) > 0 {
		opts := make([]any, len(options))
		for i, o := range options {
			opts[i] = o
		}
		args["options"] = opts
	}

	out, err := def.Handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", toolID, err)
	}
	return out, nil
}

// PendingUITools returns queued UI render requests without consuming them.
func (e *Executor) PendingUITools() []PendingUITool {
	out := make([]PendingUITool, len(e.pending))
	copy(out, e.pending)
	return out
}

// HasPendingUITools reports whether any UI tool awaits rendering.
func (e *Executor) HasPendingUITools() bool { return len(e.pending) > 0 }

// TakePendingUITools returns and clears the queue.
func (e *Executor) TakePendingUITools() []PendingUITool {
	out := e.pending
	e.pending = nil
	return out
}

// ResolvePending removes the pending entry for toolID, if present. Called
// when the UI reports the tool's result.
func (e *Executor) ResolvePending(toolID string) {
	kept := e.pending[:0]
	for _, p := range e.pending {
		if p.Tool != toolID {
			kept = append(kept, p)
		}
	}
	e.pending = kept
}
