// Package checkpoint defines the serialized session document and the stores
// that persist it. A checkpoint captures everything needed to resume a
// conversation: state, plan shape and position, tone, history, execution
// status and fired adjustments.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dohr-michael/chatguide/internal/convo"
	"github.com/dohr-michael/chatguide/internal/plan"
)

// Version is the current checkpoint format version. Loaders reject anything
// newer than this.
const Version = 1

// PlanState is the serialized plan: blocks of task IDs plus the cursor
// position. Task definitions live in config, not here; completion state is
// reconstructed from the id lists and task_results.
type PlanState struct {
	Blocks       [][]string `json:"blocks"`
	CurrentIndex int        `json:"current_index"`
}

// ContextState is the serialized conversation history.
type ContextState struct {
	History []convo.Message `json:"history"`
}

// ExecutionState is where the turn loop stood when the checkpoint was taken.
type ExecutionState struct {
	CurrentTask string `json:"current_task,omitempty"`
	Status      string `json:"status"`
}

// Metrics are cumulative per-session counters.
type Metrics struct {
	Turns            int `json:"turns"`
	ModelCalls       int `json:"model_calls"`
	Retries          int `json:"retries"`
	ToolCalls        int `json:"tool_calls"`
	TasksCompleted   int `json:"tasks_completed"`
	AdjustmentsFired int `json:"adjustments_fired"`
	DegradedTurns    int `json:"degraded_turns"`
}

// Checkpoint is the full resumable session document.
type Checkpoint struct {
	Version          int                        `json:"version"`
	Timestamp        time.Time                  `json:"timestamp"`
	SessionID        string                     `json:"session_id"`
	State            map[string]any             `json:"state"`
	Plan             PlanState                  `json:"plan"`
	Tone             []string                   `json:"tone,omitempty"`
	CompletedTaskIDs []string                   `json:"completed_task_ids"`
	FailedTaskIDs    []string                   `json:"failed_task_ids,omitempty"`
	TaskResults      map[string]plan.TaskResult `json:"task_results,omitempty"`
	Context          ContextState               `json:"context"`
	Execution        ExecutionState             `json:"execution"`
	FiredAdjustments []string                   `json:"fired_adjustments,omitempty"`
	Metrics          Metrics                    `json:"metrics"`
	Attempts         int                        `json:"attempts,omitempty"`

	// Config embeds the original config document so a checkpoint can be
	// resumed standalone. Optional: restoring without it marks tasks that
	// have no definition as unresolved.
	Config map[string]any `json:"config,omitempty"`
}

// Marshal encodes the checkpoint as indented JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal checkpoint: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a checkpoint document and validates its version.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	if c.Version > Version {
		return nil, fmt.Errorf("checkpoint version %d is newer than supported version %d", c.Version, Version)
	}
	if c.SessionID == "" {
		return nil, fmt.Errorf("checkpoint missing session_id")
	}
	return &c, nil
}
