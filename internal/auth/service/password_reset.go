package service

import (
	"context"
	"time"

	"github.com/aussiebroadwan/medrec/internal/auth/metrics"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/ratelimit"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
	"github.com/aussiebroadwan/medrec/pkg/validate"
)

const resetKeyPrefix = "password-reset:"

// ResetRequester sends password reset mail. *authsdk.Repository implements
// it.
type ResetRequester interface {
	RequestPasswordReset(ctx context.Context, email string) error
}

// PasswordResetService sends reset links, at most MaxAttempts per address
// per Window. Whether an address has an account is never revealed.
type PasswordResetService struct {
	Requester   ResetRequester
	Limiter     *ratelimit.Limiter
	MaxAttempts int
	Window      time.Duration
	Metrics     metrics.Recorder
}

// RequestReset mails a reset link for email. origin is the caller's
// scheme://host; the link points there when it parses, else at the
// configured application URL.
func (s *PasswordResetService) RequestReset(ctx context.Context, email, origin string) error {
	email = validate.SanitizeEmail(email)
	log := slogx.FromContext(ctx).With("email", slogx.MaskEmail(email))

	if r := validate.Email(email); !r.Valid {
		s.record(metrics.ResultInvalid)
		return &authsdk.Error{Code: authsdk.CodeValidation, Message: r.Message, Field: "email"}
	}

	allowed, err := s.Limiter.IsAllowed(ctx, resetKeyPrefix+email, s.MaxAttempts, s.Window)
	if err != nil {
		log.Error("password reset limiter unavailable", "err", err)
		s.record(metrics.ResultError)
		return authsdk.NewError(authsdk.CodeUnknown)
	}
	if !allowed {
		log.Warn("password reset rate limited")
		s.record(metrics.ResultRateLimited)
		return &authsdk.Error{Code: authsdk.CodeRateLimited, Message: "Too many reset requests. Please try again later."}
	}

	if origin != "" {
		ctx = authsdk.WithOrigin(ctx, origin)
	}
	err = s.Requester.RequestPasswordReset(ctx, email)
	switch authsdk.CodeOf(err) {
	case "", authsdk.CodeUserNotFound:
		log.Info("password reset requested")
		s.record(metrics.ResultOK)
		return nil
	default:
		log.Warn("password reset failed", "code", authsdk.CodeOf(err))
		s.record(metrics.ResultError)
		return err
	}
}

func (s *PasswordResetService) record(result string) {
	if s.Metrics != nil {
		s.Metrics.RecordPasswordReset(result)
	}
}
