// Package convo holds the conversation message history.
package convo

import (
	"fmt"
	"time"
)

// Role identifies the author of a message.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single turn entry, serializable for checkpoints.
type Message struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Ts      time.Time `json:"timestamp"`
}

// Context is the append-only conversation history. The full log is retained
// for checkpointing; prompts use a most-recent window.
type Context struct {
	history []Message
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{}
}

// Restore creates a context pre-populated with history.
func Restore(history []Message) *Context {
	c := &Context{history: make([]Message, len(history))}
	copy(c.history, history)
	return c
}

// Add appends a message. Only user and assistant roles are accepted.
func (c *Context) Add(role, content string) error {
	if role != RoleUser && role != RoleAssistant {
		return fmt.Errorf("invalid role %q", role)
	}
	c.history = append(c.history, Message{Role: role, Content: content, Ts: time.Now()})
	return nil
}

// History returns a copy of the full message log.
func (c *Context) History() []Message {
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Window returns up to n of the most recent messages, oldest first.
func (c *Context) Window(n int) []Message {
	if n <= 0 || len(c.history) == 0 {
		return nil
	}
	start := len(c.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]Message, len(c.history)-start)
	copy(out, c.history[start:])
	return out
}

// Len returns the number of messages.
func (c *Context) Len() int { return len(c.history) }

// Last returns the most recent message with the given role, or nil.
func (c *Context) Last(role string) *Message {
	for i := len(c.history) - 1; i >= 0; i-- {
		if c.history[i].Role == role {
			m := c.history[i]
			return &m
		}
	}
	return nil
}
