// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package guardrails

import (
	"context"
	"log/slog"

	"github.com/jllopis/conductor/pkg/memory"
)

// RedactingStore masks entry values before they reach the wrapped store.
// Reads are passed through unchanged.
type RedactingStore struct {
	memory.Store
	redactor *Redactor
	logger   *slog.Logger
}

// NewRedactingStore wraps store. A nil logger uses slog.Default().
func NewRedactingStore(store memory.Store, redactor *Redactor, logger *slog.Logger) *RedactingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedactingStore{Store: store, redactor: redactor, logger: logger}
}

// Write implements memory.Store.
func (s *RedactingStore) Write(ctx context.Context, entry memory.Entry) error {
	res := s.redactor.Redact(ctx, entry.Value)
	if res.Modified() {
		entry.Value = res.Content
		s.logger.DebugContext(ctx, "memory entry redacted",
			slog.String("key", entry.Key),
			slog.Int("redactions", len(res.Redactions)),
		)
	}
	return s.Store.Write(ctx, entry)
}

var _ memory.Store = (*RedactingStore)(nil)
