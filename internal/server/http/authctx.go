package httpserver

import "context"

type ctxKey string

const (
	userIDKey ctxKey = "cs.userID"
	roleKey   ctxKey = "cs.role"
)

// WithStaff stores the authenticated staff identity in context.
func WithStaff(ctx context.Context, userID, role string) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// StaffFromCtx fetches the authenticated staff identity from context.
func StaffFromCtx(ctx context.Context) (userID, role string, ok bool) {
	id, okID := ctx.Value(userIDKey).(string)
	r, okRole := ctx.Value(roleKey).(string)
	return id, r, okID && okRole && id != ""
}
