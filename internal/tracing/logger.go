package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggerFromContext returns the base logger enriched with whatever trace
// fields are present on the context.
func LoggerFromContext(ctx context.Context, base zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return base
	}

	logCtx := base.With()
	if traceID := GetTraceID(ctx); traceID != "" {
		logCtx = logCtx.Str("trace_id", traceID)
	}
	if runID := GetRunID(ctx); runID != "" {
		logCtx = logCtx.Str("run_id", runID)
	}
	if sessionKey := GetSessionKey(ctx); sessionKey != "" {
		logCtx = logCtx.Str("session_key", sessionKey)
	}
	if userID := GetUserID(ctx); userID != "" {
		logCtx = logCtx.Str("user_id", userID)
	}
	return logCtx.Logger()
}
