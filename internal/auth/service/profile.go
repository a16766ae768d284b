package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/medrec/internal/auth/metrics"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/identity"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
)

// ProfileService serves the signed-in user's own profile. It applies the
// same validation and row mapping as the client SDK.
type ProfileService struct {
	Table   identity.ProfileTable
	Timeout time.Duration // per call; zero means no extra deadline
	Metrics metrics.Recorder
	Now     func() time.Time
}

// GetProfile returns userID's profile.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) (*authsdk.Profile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, authsdk.NewError(authsdk.CodeUserNotFound)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.store(ctx).Get(ctx, userID)
	s.record("get", err)
	return p, err
}

// UpdateProfile validates every present field of u and writes nothing if
// any of them fails.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, u authsdk.ProfileUpdate) (*authsdk.Profile, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, authsdk.NewError(authsdk.CodeUserNotFound)
	}

	clean, err := authsdk.PrepareProfileUpdate(u, s.now())
	if err != nil {
		s.record("update", err)
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	p, err := s.store(ctx).Update(ctx, userID, clean)
	s.record("update", err)
	return p, err
}

func (s *ProfileService) store(ctx context.Context) *authsdk.ProfileStore {
	return authsdk.NewProfileStore(s.Table, slogx.FromContext(ctx))
}

func (s *ProfileService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func (s *ProfileService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *ProfileService) record(op string, err error) {
	if s.Metrics != nil {
		s.Metrics.RecordProfileOp(op, string(authsdk.CodeOf(err)))
	}
}
