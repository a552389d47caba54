package plan

import (
	"fmt"
)

// PlanBoundsError reports an out-of-range block index passed to a plan
// mutation. All four mutation operations (JumpTo, InsertBlock, RemoveBlock,
// ReplaceBlock) return it uniformly.
type PlanBoundsError struct {
	Op    string
	Index int
	Len   int
}

func (e *PlanBoundsError) Error() string {
	return fmt.Sprintf("plan: %s index %d out of range (blocks: %d)", e.Op, e.Index, e.Len)
}

// Plan is an ordered sequence of blocks with a current-index cursor. The
// cursor is monotonically non-decreasing except on explicit JumpTo.
type Plan struct {
	blocks       []*Block
	currentIndex int
}

// New creates a plan over the given blocks, positioned at the first.
func New(blocks ...*Block) *Plan {
	return &Plan{blocks: blocks}
}

// CurrentIndex returns the 0-based cursor position.
func (p *Plan) CurrentIndex() int { return p.currentIndex }

// Len returns the number of blocks.
func (p *Plan) Len() int { return len(p.blocks) }

// IsFinished reports whether the cursor has moved past the last block.
func (p *Plan) IsFinished() bool {
	return p.currentIndex >= len(p.blocks)
}

// CurrentBlock returns the block under the cursor, or nil if finished.
func (p *Plan) CurrentBlock() *Block {
	if p.IsFinished() {
		return nil
	}
	return p.blocks[p.currentIndex]
}

// Block returns the block at index, or nil if out of range.
func (p *Plan) Block(index int) *Block {
	if index < 0 || index >= len(p.blocks) {
		return nil
	}
	return p.blocks[index]
}

// Advance moves the cursor to the next block. Past the end it is a no-op.
func (p *Plan) Advance() {
	if p.currentIndex < len(p.blocks) {
		p.currentIndex++
	}
}

// JumpTo moves the cursor to index.
func (p *Plan) JumpTo(index int) error {
	if index < 0 || index >= len(p.blocks) {
		return &PlanBoundsError{Op: "jump_to", Index: index, Len: len(p.blocks)}
	}
	p.currentIndex = index
	return nil
}

// InsertBlock inserts b at index. index == Len appends.
func (p *Plan) InsertBlock(index int, b *Block) error {
	if index < 0 || index > len(p.blocks) {
		return &PlanBoundsError{Op: "insert_block", Index: index, Len: len(p.blocks)}
	}
	p.blocks = append(p.blocks, nil)
	copy(p.blocks[index+1:], p.blocks[index:])
	p.blocks[index] = b
	return nil
}

// RemoveBlock removes the block at index.
func (p *Plan) RemoveBlock(index int) error {
	if index < 0 || index >= len(p.blocks) {
		return &PlanBoundsError{Op: "remove_block", Index: index, Len: len(p.blocks)}
	}
	p.blocks = append(p.blocks[:index], p.blocks[index+1:]...)
	if p.currentIndex > len(p.blocks) {
		p.currentIndex = len(p.blocks)
	}
	return nil
}

// ReplaceBlock replaces the block at index with b.
func (p *Plan) ReplaceBlock(index int, b *Block) error {
	if index < 0 || index >= len(p.blocks) {
		return &PlanBoundsError{Op: "replace_block", Index: index, Len: len(p.blocks)}
	}
	p.blocks[index] = b
	return nil
}

// GetTask finds a task by id across all blocks. Linear search; plans are
// small.
func (p *Plan) GetTask(id string) *Task {
	for _, b := range p.blocks {
		for _, t := range b.Tasks {
			if t.ID == id {
				return t
			}
		}
	}
	return nil
}

// AllTasks returns every task across all blocks, in plan order.
func (p *Plan) AllTasks() []*Task {
	var out []*Task
	for _, b := range p.blocks {
		out = append(out, b.Tasks...)
	}
	return out
}

// CompletedIDs returns the ids of all completed tasks, in plan order.
func (p *Plan) CompletedIDs() []string {
	var out []string
	for _, t := range p.AllTasks() {
		if t.IsCompleted() {
			out = append(out, t.ID)
		}
	}
	return out
}

// NextBlockPreview returns the first pending task of the block after the
// cursor, for smooth hand-off in prompts. Nil when there is no next block.
func (p *Plan) NextBlockPreview() *Task {
	next := p.Block(p.currentIndex + 1)
	if next == nil {
		return nil
	}
	return next.FirstPending()
}

// BlockIDs returns the plan as lists of task ids, one list per block.
func (p *Plan) BlockIDs() [][]string {
	out := make([][]string, len(p.blocks))
	for i, b := range p.blocks {
		out[i] = b.TaskIDs()
	}
	return out
}

// CheckInvariants verifies that every block before the cursor has no
// pending tasks. A violation indicates an orchestration bug.
func (p *Plan) CheckInvariants() error {
	for i := 0; i < p.currentIndex && i < len(p.blocks); i++ {
		for _, t := range p.blocks[i].Tasks {
			if !t.IsSettled() {
				return fmt.Errorf("plan: task %q in passed block %d is still pending", t.ID, i)
			}
		}
	}
	return nil
}
