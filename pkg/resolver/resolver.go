// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package resolver substitutes ${key} references in step arguments with the
// results of earlier steps.
package resolver

import (
	"sort"
	"strings"

	"github.com/jllopis/conductor/pkg/core"
	"github.com/jllopis/conductor/pkg/value"
)

// View is the read-only part of an execution context the resolver needs.
type View interface {
	Lookup(key string) (core.ToolOutput, bool)
}

// Resolve returns template with every exact "${name}" string replaced by the
// result stored under name, or Null when name is absent. Substituted values
// keep their type. Strings that merely contain a reference are left as is.
func Resolve(template value.Value, ctx View) value.Value {
	switch template.Kind() {
	case value.KindString:
		s, _ := template.AsString()
		name, ok := Reference(s)
		if !ok {
			return template
		}
		if ctx == nil {
			return value.Null()
		}
		out, found := ctx.Lookup(name)
		if !found {
			return value.Null()
		}
		return out.Result
	case value.KindArray:
		items := template.Items()
		for i, item := range items {
			items[i] = Resolve(item, ctx)
		}
		return value.Array(items...)
	case value.KindObject:
		fields := template.Fields()
		for k, f := range fields {
			fields[k] = Resolve(f, ctx)
		}
		return value.Object(fields)
	default:
		return template
	}
}

// Reference reports whether s is exactly "${name}" and returns name.
func Reference(s string) (string, bool) {
	if len(s) < 3 || !strings.HasPrefix(s, "${") || !strings.HasSuffix(s, "}") {
		return "", false
	}
	name := s[2 : len(s)-1]
	if name == "" || strings.ContainsAny(name, "${}") {
		return "", false
	}
	return name, true
}

// References lists the distinct keys template refers to, sorted.
func References(template value.Value) []string {
	seen := make(map[string]struct{})
	collect(template, seen)
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func collect(v value.Value, seen map[string]struct{}) {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		if name, ok := Reference(s); ok {
			seen[name] = struct{}{}
		}
	case value.KindArray:
		for _, item := range v.Items() {
			collect(item, seen)
		}
	case value.KindObject:
		for _, f := range v.Fields() {
			collect(f, seen)
		}
	}
}
