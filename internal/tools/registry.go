// Package tools provides the tool registry and executor. The registry is an
// explicit instance constructed once per process and passed by reference.
// There are no package-level globals, so conversations cannot couple through
// ambient state.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Kind distinguishes function tools (run a handler, merge the result into
// state) from UI tools (enqueue a render request for the caller).
type Kind string

const (
	KindFunction Kind = "function"
	KindUI       Kind = "ui"
)

// Handler is the function-tool execution contract.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Definition describes a registered tool.
type Definition struct {
	ID          string
	Kind        Kind
	Description string
	Handler     Handler
}

// Registry holds tool definitions by id.
type Registry struct {
	tools map[string]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Definition)}
}

// Register adds a tool. Registering an existing id is an error.
func (r *Registry) Register(id string, kind Kind, description string, handler Handler) error {
	if _, exists := r.tools[id]; exists {
		return fmt.Errorf("tool %q already registered", id)
	}
	if kind == "" {
		kind = KindFunction
	}
	r.tools[id] = &Definition{ID: id, Kind: kind, Description: description, Handler: handler}
	return nil
}

// Get returns the definition for id, or nil.
func (r *Registry) Get(id string) *Definition {
	return r.tools[id]
}

// IDs returns all registered tool ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tools))
	for id := range r.tools {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
