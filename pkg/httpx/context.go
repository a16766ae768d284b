package httpx

import (
	"context"

	"github.com/aussiebroadwan/medrec/pkg/authsdk"
)

type ctxKey string

const (
	CtxKeyUser  ctxKey = "user"
	CtxKeyToken ctxKey = "token"
)

// WithAuth stores the verified user and the bearer token it came from.
func WithAuth(ctx context.Context, user authsdk.User, token string) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUser, user)
	ctx = context.WithValue(ctx, CtxKeyToken, token)
	return ctx
}

// UserFromContext returns the user admitted by AuthnMiddleware.
func UserFromContext(ctx context.Context) (authsdk.User, bool) {
	u, ok := ctx.Value(CtxKeyUser).(authsdk.User)
	return u, ok
}

// TokenFromContext returns the verified bearer token, or "".
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(CtxKeyToken).(string)
	return t
}
