// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry provides the concurrency-safe name to tool mapping shared
// by every plan run.
package registry

import (
	"sort"
	"sync"

	"github.com/jllopis/conductor/pkg/core"
)

// Info describes a registered tool for introspection.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry maps tool names to tools. Lookups proceed concurrently; Register
// takes the write lock so readers observe either the old or the new map
// state, never a partial one.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]core.Tool
}

// New returns a registry pre-populated with tools.
func New(tools ...core.Tool) *Registry {
	r := &Registry{tools: make(map[string]core.Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register inserts or replaces a tool by name. Nil tools are ignored.
func (r *Registry) Register(tool core.Tool) {
	if tool == nil {
		return
	}
	name := tool.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tools == nil {
		r.tools = make(map[string]core.Tool)
	}
	r.tools[name] = tool
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (core.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the registered tools sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	out := make([]Info, 0, len(r.tools))
	for name, t := range r.tools {
		out = append(out, Info{Name: name, Description: t.Description()})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Tools returns the registered tools sorted by name.
func (r *Registry) Tools() []core.Tool {
	r.mu.RLock()
	out := make([]core.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
