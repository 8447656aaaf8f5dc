// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dikser Contributors

package errutil

import (
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context.
// oops errors contribute their code and context; any error carrying a Kind
// contributes it as "kind".
func LogError(logger *slog.Logger, msg string, err error) {
	attrs := []any{"error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil && code != "" {
			attrs = append(attrs, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			attrs = append(attrs, "context", ctx)
		}
	}
	if kind, ok := kindOf(err); ok {
		attrs = append(attrs, "kind", kind.String())
	}
	logger.Error(msg, attrs...)
}
