package auth

import "context"

type contextKey struct{}

// Session identifies the authenticated user for the duration of one request.
// It is carried explicitly through the request context rather than any shared
// state.
type Session struct {
	UserID      int64
	AccountType string
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

func FromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(contextKey{}).(Session)
	return s, ok
}

func UserID(ctx context.Context) int64 {
	s, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return s.UserID
}

func IsAdmin(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return s.AccountType == "admin"
}

// CanManageLists reports whether the session may use shopping list endpoints.
func CanManageLists(ctx context.Context) bool {
	s, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return s.AccountType == "premium" || s.AccountType == "admin"
}
