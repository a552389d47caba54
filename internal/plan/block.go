package plan

// Block is an ordered group of tasks completed together before the plan
// advances. It has no identity beyond its position in the plan.
type Block struct {
	Tasks []*Task
}

// NewBlock creates a block over the given tasks.
func NewBlock(tasks ...*Task) *Block {
	return &Block{Tasks: tasks}
}

// IsComplete reports whether every task is completed or failed. The value
// is always derived from task status, never stored.
func (b *Block) IsComplete() bool {
	for _, t := range b.Tasks {
		if !t.IsSettled() {
			return false
		}
	}
	return true
}

// PendingTasks returns the tasks that are neither completed nor failed, in
// order.
func (b *Block) PendingTasks() []*Task {
	var out []*Task
	for _, t := range b.Tasks {
		if !t.IsSettled() {
			out = append(out, t)
		}
	}
	return out
}

// FirstPending returns the first non-settled task, or nil.
func (b *Block) FirstPending() *Task {
	for _, t := range b.Tasks {
		if !t.IsSettled() {
			return t
		}
	}
	return nil
}

// TaskIDs returns the ids of all tasks in order.
func (b *Block) TaskIDs() []string {
	ids := make([]string, len(b.Tasks))
	for i, t := range b.Tasks {
		ids[i] = t.ID
	}
	return ids
}
