package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/medrec/internal/auth/metrics"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
)

// UserResolver resolves an access token to the user it was issued to.
// *authsdk.Repository implements it.
type UserResolver interface {
	GetUser(ctx context.Context, token string) (*authsdk.User, error)
}

// TokenVerifier checks bearer tokens against the identity provider. The
// token's signature is the provider's concern; the verifier only asks who
// it belongs to.
type TokenVerifier struct {
	Users   UserResolver
	Metrics metrics.Recorder
}

// Verify never panics and never returns a raw provider error. Any failure,
// including a panic in the resolver, yields Valid false.
func (v *TokenVerifier) Verify(ctx context.Context, token string) (res authsdk.VerifyResult) {
	log := slogx.FromContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("token verification panicked", "panic", rec)
			res = authsdk.VerifyResult{Error: authsdk.NewError(authsdk.CodeUnknown)}
		}
		v.record(res)
	}()

	// An empty token would make the resolver fall back to a held session.
	if token == "" {
		return authsdk.VerifyResult{Error: authsdk.NewError(authsdk.CodeNoSession)}
	}

	user, err := v.Users.GetUser(ctx, token)
	if err != nil {
		te := authsdk.TranslateError(err)
		log.Info("token rejected by identity provider", "code", te.Code)
		return authsdk.VerifyResult{Error: te}
	}
	if user == nil {
		return authsdk.VerifyResult{Error: authsdk.NewError(authsdk.CodeUserNotFound)}
	}
	if _, err := uuid.Parse(user.ID); err != nil {
		log.Warn("identity provider returned a malformed user id")
		return authsdk.VerifyResult{Error: authsdk.NewError(authsdk.CodeUnknown)}
	}

	return authsdk.VerifyResult{Valid: true, User: user}
}

func (v *TokenVerifier) record(res authsdk.VerifyResult) {
	if v.Metrics == nil {
		return
	}
	switch {
	case res.Valid:
		v.Metrics.RecordVerify(metrics.ResultOK)
	case res.Error != nil && (res.Error.Code == authsdk.CodeNetwork || res.Error.Code == authsdk.CodeUnknown):
		v.Metrics.RecordVerify(metrics.ResultError)
	default:
		v.Metrics.RecordVerify(metrics.ResultRejected)
	}
}
