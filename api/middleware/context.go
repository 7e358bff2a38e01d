package middleware

import "context"

type contextKey string

const (
	ctxAdminID    contextKey = "admin_id"
	ctxAdminEmail contextKey = "admin_email"
)

// AdminIDFromContext returns the authenticated admin id, or "".
func AdminIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxAdminID).(string); ok {
		return v
	}
	return ""
}

// AdminEmailFromContext returns the authenticated admin email, or "".
func AdminEmailFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxAdminEmail).(string); ok {
		return v
	}
	return ""
}
