// Package audit records security-relevant actions: a structured log
// event for every sensitive operation and an in-memory trail for admin
// balance overrides.
package audit

import (
	"context"
	"errors"
	"strings"

	"walletd.org/internal/auth"
	"walletd.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit
// logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes an audit log entry enriched with request and user
// context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	kv := []any{"type", "audit", "event", event}
	if rid := RequestIDFromContext(ctx); rid != "" {
		kv = append(kv, "request_id", rid)
	}
	if p, ok := auth.PrincipalFromContext(ctx); ok {
		kv = append(kv, "user_id", p.UserID)
	}
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	obs.Logger().Infow("audit", kv...)
	return nil
}
