package httpx

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
)

// Verifier resolves a bearer token to a user.
type Verifier interface {
	Verify(ctx context.Context, token string) authsdk.VerifyResult
}

// AuthnMiddleware admits only requests carrying a bearer token the verifier
// accepts. A nil verifier means authentication was never configured: every
// request is refused with 503 AUTH_UNAVAILABLE. Pass an untyped nil, not a
// nil pointer, for that case.
//
// A missing or malformed Authorization header is rejected with 401 before
// the verifier is consulted.
func AuthnMiddleware(v Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			if v == nil {
				log.Error("request refused: token verifier not configured")
				WriteError(w, http.StatusServiceUnavailable, CodeAuthUnavailable, "authentication is not available")
				return
			}

			token, ok := ExtractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeBearerError(w, "missing or malformed bearer token")
				return
			}

			res := v.Verify(ctx, token)
			if !res.Valid || res.User == nil {
				log.Info("bearer token rejected", "err", res.Error)
				writeBearerError(w, "invalid or expired token")
				return
			}

			ctx = WithAuth(ctx, *res.User, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, CodeUnauthenticated, desc)
}
