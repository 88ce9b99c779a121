// Package log provides the log action: it records a message and returns,
// useful for tracing a conversation path without side effects.
package log

import (
	"context"
	"log/slog"

	"github.com/convflow/convflow/pkg/actions"
)

type Action struct {
	message string
	level   string
}

func NewAction(params map[string]any) *Action {
	message, _ := params["message"].(string)
	level, _ := params["level"].(string)

	if level == "" {
		level = "info"
	}

	return &Action{message: message, level: level}
}

func (a *Action) Execute(ctx context.Context, input actions.Input, logger *slog.Logger) (map[string]any, error) {
	switch a.level {
	case "debug":
		logger.DebugContext(ctx, a.message)
	case "warn", "warning":
		logger.WarnContext(ctx, a.message)
	case "error":
		logger.ErrorContext(ctx, a.message)
	default:
		logger.InfoContext(ctx, a.message)
	}

	return map[string]any{"logged": true, "message": a.message}, nil
}
