// Package plan provides the task / block / plan state machine that drives a
// guided conversation forward.
package plan

import (
	"log/slog"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// TaskResult is the last accepted key/value pair for a completed task.
type TaskResult struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// Task is an atomic unit of conversational work: ask for, extract and
// validate a set of expected values.
type Task struct {
	ID          string             `json:"id"`
	Description string             `json:"description"`
	Expects     []ExpectDefinition `json:"expects,omitempty"`
	Tools       []string           `json:"tools,omitempty"`
	Silent      bool               `json:"silent,omitempty"`

	// Runtime state, mutated only by the turn processor's completion
	// routine (and Reopen for explicit corrections).
	Status   TaskStatus  `json:"status"`
	Result   *TaskResult `json:"result,omitempty"`
	Attempts int         `json:"attempts,omitempty"`

	// Unresolved marks a task restored from a checkpoint without a matching
	// definition in the loaded config. Downstream code can detect and warn.
	Unresolved bool `json:"unresolved,omitempty"`
}

// NewTask creates a pending task.
func NewTask(id, description string) *Task {
	return &Task{ID: id, Description: description, Status: TaskPending}
}

// Complete marks the task completed with the extracted key/value. The call
// is idempotent: completing an already-completed task is a logged no-op and
// never overwrites Result.
func (t *Task) Complete(key string, value any) {
	if t.Status == TaskCompleted {
		slog.Debug("task already completed, ignoring", "task", t.ID, "key", key)
		return
	}
	t.Status = TaskCompleted
	t.Result = &TaskResult{Key: key, Value: value}
}

// CompleteAuto marks a task completed with no result. Used for tasks with
// no expectations, which complete as soon as their turn runs.
func (t *Task) CompleteAuto() {
	if t.Status == TaskCompleted {
		return
	}
	t.Status = TaskCompleted
}

// Fail marks the task failed. Used by force-completion when the retry
// budget is exhausted with nothing usable extracted.
func (t *Task) Fail() {
	if t.Status == TaskCompleted {
		slog.Debug("task already completed, ignoring fail", "task", t.ID)
		return
	}
	t.Status = TaskFailed
}

// Reopen transitions a settled task back to pending. This is the only
// completed→pending path; it exists for explicit correction actions.
func (t *Task) Reopen() {
	t.Status = TaskPending
	t.Result = nil
	t.Attempts = 0
}

// IsCompleted reports whether the task is completed.
func (t *Task) IsCompleted() bool { return t.Status == TaskCompleted }

// IsSettled reports whether the task is completed or failed.
func (t *Task) IsSettled() bool {
	return t.Status == TaskCompleted || t.Status == TaskFailed
}

// ExpectedKeys returns the state keys this task extracts, in declaration
// order.
func (t *Task) ExpectedKeys() []string {
	keys := make([]string, len(t.Expects))
	for i, e := range t.Expects {
		keys[i] = e.Key
	}
	return keys
}

// Expect returns the definition for key, or nil.
func (t *Task) Expect(key string) *ExpectDefinition {
	for i := range t.Expects {
		if t.Expects[i].Key == key {
			return &t.Expects[i]
		}
	}
	return nil
}

// Validate checks value for key against this task's expectations. Keys not
// declared in Expects validate trivially; the turn processor's whitelist
// drops them before they reach state.
func (t *Task) Validate(key string, value any) (bool, string) {
	if e := t.Expect(key); e != nil {
		return e.Validate(value)
	}
	return true, ""
}
