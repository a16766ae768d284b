package authsdk

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/aussiebroadwan/medrec/pkg/identity"
)

// ResetPasswordPath is appended to the origin to build the password reset
// redirect.
const ResetPasswordPath = "/reset-password"

var ErrProviderRequired = errors.New("authsdk: identity provider is required")

type originKey struct{}

// WithOrigin records the origin (scheme://host) of the current request or
// window. RequestPasswordReset redirects there instead of the configured
// application URL.
func WithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, originKey{}, origin)
}

func originFrom(ctx context.Context) string {
	o, _ := ctx.Value(originKey{}).(string)
	return o
}

type RepositoryConfig struct {
	Provider identity.Provider
	Profiles identity.ProfileTable

	// AppURL is the redirect base when the context carries no origin.
	AppURL string

	Logger *slog.Logger
}

// Repository wraps an identity.Provider and profile table so that every
// operation returns either a value or an *Error. Provider panics are
// recovered and reported as CodeUnknown.
type Repository struct {
	provider identity.Provider
	profiles *ProfileStore
	appURL   string
	log      *slog.Logger
}

func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if cfg.Provider == nil {
		return nil, ErrProviderRequired
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	r := &Repository{
		provider: cfg.Provider,
		appURL:   strings.TrimRight(cfg.AppURL, "/"),
		log:      log,
	}
	if cfg.Profiles != nil {
		r.profiles = NewProfileStore(cfg.Profiles, log)
	}
	return r, nil
}

// guard runs fn, translating its error and any panic into an *Error. The
// returned error is nil or an *Error.
func guard(log *slog.Logger, op string, fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("identity call panicked", "op", op, "panic", rec)
			err = newError(CodeUnknown)
		}
	}()

	if e := fn(); e != nil {
		te := TranslateError(e)
		log.Debug("identity call failed", "op", op, "code", te.Code, "err", e)
		return te
	}
	return nil
}

// SignUp registers in. It returns CodeEmailExists when the provider answers
// with a user that has no identities, which is how it reports an existing
// address without revealing it.
func (r *Repository) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	var (
		user *identity.User
		sess *identity.Session
	)
	err := guard(r.log, "sign_up", func() (err error) {
		user, sess, err = r.provider.SignUp(ctx, identity.SignUpParams{
			Email:        in.Email,
			Password:     in.Password,
			Data:         signUpMetadata(in),
			CaptchaToken: in.CaptchaToken,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	switch {
	case user == nil && sess == nil:
		return nil, newError(CodeUnknown)
	case user == nil:
		user = &sess.User
	}
	if len(user.Identities) == 0 {
		return nil, newError(CodeEmailExists)
	}

	return &SignUpResult{User: mapUser(*user), Session: mapSession(sess)}, nil
}

func (r *Repository) SignIn(ctx context.Context, in SignInInput) (*Session, error) {
	var sess *identity.Session
	err := guard(r.log, "sign_in", func() (err error) {
		sess, err = r.provider.SignInWithPassword(ctx, identity.SignInParams{
			Email:        in.Email,
			Password:     in.Password,
			CaptchaToken: in.CaptchaToken,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, newError(CodeUnknown)
	}
	return mapSession(sess), nil
}

func (r *Repository) SignOut(ctx context.Context) error {
	return guard(r.log, "sign_out", func() error {
		return r.provider.SignOut(ctx)
	})
}

// GetSession returns the held session, or nil when signed out.
func (r *Repository) GetSession(ctx context.Context) (*Session, error) {
	var sess *identity.Session
	err := guard(r.log, "get_session", func() (err error) {
		sess, err = r.provider.GetSession(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return mapSession(sess), nil
}

// GetUser resolves token to its user; an empty token means the held
// session.
func (r *Repository) GetUser(ctx context.Context, token string) (*User, error) {
	var user *identity.User
	err := guard(r.log, "get_user", func() (err error) {
		user, err = r.provider.GetUser(ctx, token)
		return err
	})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, newError(CodeUserNotFound)
	}
	u := mapUser(*user)
	return &u, nil
}

func (r *Repository) RefreshSession(ctx context.Context) (*Session, error) {
	var sess *identity.Session
	err := guard(r.log, "refresh_session", func() (err error) {
		sess, err = r.provider.RefreshSession(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, newError(CodeNoSession)
	}
	return mapSession(sess), nil
}

// RequestPasswordReset mails a reset link that lands on ResetPasswordPath
// under the context's origin, or under AppURL when there is none.
func (r *Repository) RequestPasswordReset(ctx context.Context, email string) error {
	redirect := r.resetRedirect(ctx)
	return guard(r.log, "reset_password", func() error {
		return r.provider.ResetPasswordForEmail(ctx, email, redirect)
	})
}

func (r *Repository) resetRedirect(ctx context.Context) string {
	base := r.appURL
	if o := originFrom(ctx); o != "" {
		if u, err := url.Parse(o); err == nil && u.Scheme != "" && u.Host != "" {
			base = u.Scheme + "://" + u.Host
		}
	}
	if base == "" {
		return ""
	}
	return base + ResetPasswordPath
}

func (r *Repository) UpdatePassword(ctx context.Context, password string) error {
	return guard(r.log, "update_password", func() error {
		_, err := r.provider.UpdateUser(ctx, identity.UserAttributes{Password: password})
		return err
	})
}

func (r *Repository) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	if r.profiles == nil {
		return nil, newError(CodeUnknown)
	}
	return r.profiles.Get(ctx, userID)
}

func (r *Repository) UpdateProfile(ctx context.Context, userID string, u ProfileUpdate) (*Profile, error) {
	if r.profiles == nil {
		return nil, newError(CodeUnknown)
	}
	return r.profiles.Update(ctx, userID, u)
}

// OnAuthStateChange forwards provider events with sessions mapped to the
// SDK's types.
func (r *Repository) OnAuthStateChange(fn func(ctx context.Context, ev identity.Event, sess *Session)) func() {
	return r.provider.OnAuthStateChange(func(ctx context.Context, ev identity.Event, s *identity.Session) {
		fn(ctx, ev, mapSession(s))
	})
}

func mapUser(u identity.User) User {
	return User{
		ID:             u.ID,
		Email:          u.Email,
		EmailConfirmed: u.EmailConfirmedAt != nil,
		CreatedAt:      u.CreatedAt,
	}
}

func mapSession(s *identity.Session) *Session {
	if s == nil {
		return nil
	}
	out := &Session{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		User:         mapUser(s.User),
	}
	if s.ExpiresAt != 0 {
		out.ExpiresAt = time.Unix(s.ExpiresAt, 0)
	}
	return out
}
