package agent

import "context"

type contextKey string

const sessionIDKey contextKey = "agent_session_id"

// WithSessionID attaches a session id to the context for event journaling.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// SessionIDFrom extracts the session id from the context, or "" if unset.
func SessionIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}
