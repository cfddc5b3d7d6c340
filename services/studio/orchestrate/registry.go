// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package orchestrate

import (
	"fmt"
	"sort"
	"sync"

	"github.com/scanforgeai/scanforge/services/studio/intent"
)

// Registry maps intents to tools. Registration happens at startup; lookup
// is hot-path.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	byIntent map[intent.Intent]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    map[string]Tool{},
		byIntent: map[intent.Intent]string{},
	}
}

// Register adds a tool and binds it to the intents it serves.
// Re-registering a name or double-binding an intent is a wiring bug and
// errors rather than silently overwriting.
func (r *Registry) Register(tool Tool, intents ...intent.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	for _, it := range intents {
		if bound, exists := r.byIntent[it]; exists {
			return fmt.Errorf("intent %s already bound to tool %q", it, bound)
		}
	}

	r.tools[name] = tool
	for _, it := range intents {
		r.byIntent[it] = name
	}
	return nil
}

// Resolve returns the tool serving an intent.
func (r *Registry) Resolve(it intent.Intent) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.byIntent[it]
	if !ok {
		return nil, false
	}
	tool, ok := r.tools[name]
	return tool, ok
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Definitions lists all registered tool definitions, sorted by name.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool.Definition())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
