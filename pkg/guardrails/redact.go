// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package guardrails masks sensitive values in text before it is persisted.
package guardrails

import (
	"context"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// Mode determines how a match is replaced.
type Mode int

const (
	// ModeMask replaces a match with its placeholder, e.g. "[EMAIL]".
	ModeMask Mode = iota
	// ModeRedact removes the match.
	ModeRedact
	// ModeHash replaces a match with a placeholder carrying a short hash,
	// so equal values stay correlatable.
	ModeHash
)

// ParseMode maps "mask", "redact" and "hash"; anything else is mask.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "redact":
		return ModeRedact
	case "hash":
		return ModeHash
	default:
		return ModeMask
	}
}

// Type categorizes sensitive values.
type Type string

const (
	TypeEmail      Type = "email"
	TypeCreditCard Type = "credit_card"
	TypeIPAddress  Type = "ip_address"
	TypeSecret     Type = "secret"
	TypePhone      Type = "phone"
)

type pattern struct {
	kind  Type
	re    *regexp.Regexp
	mask  string
	group int // submatch to replace; 0 is the whole match
}

// Order matters: more specific patterns come first.
var defaultPatterns = []pattern{
	{TypeSecret, regexp.MustCompile(`(?i)\b(?:api[_-]?key|token|secret|password|passwd)\s*[:=]\s*["']?([^\s"']{4,})`), "[SECRET]", 1},
	{TypeSecret, regexp.MustCompile(`(?i)\bbearer\s+([A-Za-z0-9._~+/-]{8,}=*)`), "[SECRET]", 1},
	{TypeSecret, regexp.MustCompile(`\bAKIA[0-9A-Z]{16}\b`), "[SECRET]", 0},
	{TypeCreditCard, regexp.MustCompile(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`), "[CREDIT_CARD]", 0},
	{TypeEmail, regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]", 0},
	{TypeIPAddress, regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\b`), "[IP_ADDRESS]", 0},
	{TypePhone, regexp.MustCompile(`\+[0-9]{1,3}[-.\s]?[0-9]{6,14}\b`), "[PHONE]", 0},
}

// Redaction records one replaced value; the original is never kept.
type Redaction struct {
	Type        Type
	Replacement string
	Position    int
}

// Result is the outcome of Redact.
type Result struct {
	Content    string
	Redactions []Redaction
}

// Modified reports whether anything was replaced.
func (r Result) Modified() bool { return len(r.Redactions) > 0 }

// Redactor finds and replaces sensitive values. It is safe for concurrent use.
type Redactor struct {
	mode     Mode
	patterns []pattern
	enabled  map[Type]bool
	err      error
}

// Option configures a Redactor.
type Option func(*Redactor)

// WithTypes restricts the redactor to types. "all" or no types keeps every
// built-in type enabled.
func WithTypes(types ...string) Option {
	return func(r *Redactor) {
		if len(types) == 0 {
			return
		}
		for _, t := range types {
			if strings.EqualFold(t, "all") {
				return
			}
		}
		for k := range r.enabled {
			r.enabled[k] = false
		}
		for _, t := range types {
			r.enabled[Type(strings.ToLower(strings.TrimSpace(t)))] = true
		}
	}
}

// WithPattern adds a custom pattern replaced by mask. Invalid expressions
// are reported by New.
func WithPattern(kind Type, expr, mask string) Option {
	return func(r *Redactor) {
		re, err := regexp.Compile(expr)
		if err != nil {
			r.err = fmt.Errorf("guardrails: pattern %q: %w", expr, err)
			return
		}
		r.patterns = append(r.patterns, pattern{kind: kind, re: re, mask: mask})
		r.enabled[kind] = true
	}
}

// New builds a Redactor with every built-in type enabled.
func New(mode Mode, opts ...Option) (*Redactor, error) {
	r := &Redactor{
		mode:     mode,
		patterns: append([]pattern(nil), defaultPatterns...),
		enabled:  make(map[Type]bool),
	}
	for _, p := range defaultPatterns {
		r.enabled[p.kind] = true
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}

// Redact replaces every enabled match in text. It stops early, returning
// what it has, when ctx is done.
func (r *Redactor) Redact(ctx context.Context, text string) Result {
	res := Result{Content: text}
	if text == "" {
		return res
	}
	for _, p := range r.patterns {
		if !r.enabled[p.kind] {
			continue
		}
		if ctx.Err() != nil {
			return res
		}
		matches := p.re.FindAllStringSubmatchIndex(res.Content, -1)
		for i := len(matches) - 1; i >= 0; i-- {
			start, end := matches[i][2*p.group], matches[i][2*p.group+1]
			if start < 0 {
				continue
			}
			replacement := r.replacement(p, res.Content[start:end])
			res.Content = res.Content[:start] + replacement + res.Content[end:]
			res.Redactions = append(res.Redactions, Redaction{Type: p.kind, Replacement: replacement, Position: start})
		}
	}
	return res
}

func (r *Redactor) replacement(p pattern, original string) string {
	switch r.mode {
	case ModeRedact:
		return ""
	case ModeHash:
		h := fnv.New64a()
		_, _ = h.Write([]byte(original))
		return fmt.Sprintf("%s_%08X]", strings.TrimSuffix(p.mask, "]"), uint32(h.Sum64()))
	default:
		return p.mask
	}
}
