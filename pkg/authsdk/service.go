package authsdk

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/medrec/pkg/identity"
	"github.com/aussiebroadwan/medrec/pkg/ratelimit"
	"github.com/aussiebroadwan/medrec/pkg/slogx"
	"github.com/aussiebroadwan/medrec/pkg/validate"
)

// Sign-in attempt budget per e-mail address.
const (
	SignInMaxAttempts = 5
	SignInWindow      = 15 * time.Minute
)

var ErrRepositoryRequired = errors.New("authsdk: repository is required")

type Config struct {
	Repository *Repository

	// Limiter gates sign-in per e-mail. Defaults to an in-process limiter.
	Limiter     *ratelimit.Limiter
	MaxAttempts int
	Window      time.Duration

	// PasswordPolicy defaults to validate.DefaultPasswordPolicy.
	PasswordPolicy *validate.PasswordPolicy

	Logger *slog.Logger
	Now    func() time.Time
}

type listenerEntry struct {
	id uint64
	fn Listener
}

type notice struct {
	ctx context.Context
	ev  Event
	st  AuthState
}

// Service is the client-side auth orchestrator. It validates input, applies
// the sign-in limiter, keeps sessions fresh and publishes an AuthState to
// subscribers on every provider event.
type Service struct {
	repo        *Repository
	limiter     *ratelimit.Limiter
	maxAttempts int
	window      time.Duration
	policy      validate.PasswordPolicy
	log         *slog.Logger
	now         func() time.Time

	// dispatch serialises state derivation. Listeners are never called
	// with it held.
	dispatch sync.Mutex

	omu      sync.Mutex
	outbox   []notice
	draining bool

	mu    sync.RWMutex
	state AuthState

	lmu       sync.Mutex
	listeners []listenerEntry
	nextID    uint64

	expiry    expiryCache
	refreshMu sync.Mutex

	unsubscribe func()
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Repository == nil {
		return nil, ErrRepositoryRequired
	}

	s := &Service{
		repo:        cfg.Repository,
		limiter:     cfg.Limiter,
		maxAttempts: cfg.MaxAttempts,
		window:      cfg.Window,
		policy:      validate.DefaultPasswordPolicy,
		log:         cfg.Logger,
		now:         cfg.Now,
		state:       AuthState{Status: StatusSignedOut},
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if cfg.PasswordPolicy != nil {
		s.policy = *cfg.PasswordPolicy
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = SignInMaxAttempts
	}
	if s.window <= 0 {
		s.window = SignInWindow
	}
	if s.limiter == nil {
		l, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.WithClock(s.now))
		if err != nil {
			return nil, err
		}
		s.limiter = l
	}

	s.unsubscribe = s.repo.OnAuthStateChange(s.handleProviderEvent)
	return s, nil
}

// Close detaches the Service from the provider's event stream.
func (s *Service) Close() {
	s.unsubscribe()
}

// ============================================================================
// Subscribers
// ============================================================================

// OnAuthStateChange registers fn and returns a function that removes it.
// Listeners are called in registration order, once per event. A listener
// may call back into the Service; events it causes are delivered after the
// current one has reached every listener.
func (s *Service) OnAuthStateChange(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			defer s.lmu.Unlock()
			for i, e := range s.listeners {
				if e.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// State returns the current snapshot.
func (s *Service) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Service) setState(st AuthState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// commit runs fn with s.dispatch held, then delivers whatever fn published.
func (s *Service) commit(fn func()) {
	s.dispatch.Lock()
	func() {
		defer s.dispatch.Unlock()
		fn()
	}()
	s.flush()
}

// publish queues a snapshot for delivery. It must be called with s.dispatch
// held so the queue follows the order of state changes.
func (s *Service) publish(ctx context.Context, ev Event, st AuthState) {
	s.omu.Lock()
	s.outbox = append(s.outbox, notice{ctx: ctx, ev: ev, st: st})
	s.omu.Unlock()
}

// flush drains the outbox. Only one goroutine drains at a time; a call made
// while draining, including one from inside a listener, leaves its events to
// the active drainer.
func (s *Service) flush() {
	s.omu.Lock()
	if s.draining {
		s.omu.Unlock()
		return
	}
	s.draining = true
	s.omu.Unlock()

	for {
		s.omu.Lock()
		if len(s.outbox) == 0 {
			s.draining = false
			s.omu.Unlock()
			return
		}
		n := s.outbox[0]
		s.outbox = s.outbox[1:]
		s.omu.Unlock()

		s.deliver(n)
	}
}

func (s *Service) deliver(n notice) {
	s.lmu.Lock()
	ls := make([]listenerEntry, len(s.listeners))
	copy(ls, s.listeners)
	s.lmu.Unlock()

	for _, l := range ls {
		s.call(l.fn, n)
	}
}

func (s *Service) call(fn Listener, n notice) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger(n.ctx).Error("auth listener panicked", "event", n.ev, "panic", rec)
		}
	}()
	fn(n.ctx, n.ev, n.st)
}

func (s *Service) handleProviderEvent(ctx context.Context, ev identity.Event, sess *Session) {
	s.commit(func() {
		st := s.derive(ctx, Event(ev), sess)
		s.setState(st)
		s.publish(ctx, Event(ev), st)
	})
}

// derive rebuilds the AuthState for sess, fetching the profile when a user
// is present. s.dispatch must be held.
func (s *Service) derive(ctx context.Context, ev Event, sess *Session) AuthState {
	if ev == EventSignedOut || sess == nil {
		return AuthState{Status: StatusSignedOut}
	}

	user := sess.User
	st := AuthState{Status: StatusSignedIn, User: &user, Session: sess}

	prev := s.State()
	if ev == EventTokenRefreshed && prev.Profile != nil && prev.User != nil && prev.User.ID == user.ID {
		st.Profile = prev.Profile
		return st
	}

	profile, err := s.repo.GetProfile(ctx, user.ID)
	switch {
	case err == nil:
		st.Profile = profile
	case CodeOf(err) == CodeUserNotFound:
		// No profile row yet.
	default:
		s.log.Warn("profile fetch failed", "user_id", user.ID, "code", CodeOf(err))
	}
	return st
}

func (s *Service) logger(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, s.log)
}

// beginAuth marks the state as authenticating and returns the state it
// replaced. The transition is not published.
func (s *Service) beginAuth() AuthState {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.state
	s.state.Status = StatusAuthenticating
	s.state.Loading = true
	s.state.Err = nil
	return prev
}

// endAuth settles the state after a provider call. Failures are published
// as EventAuthError and keep whatever user, session and profile were held.
// A success the provider did not announce is published as ev; one without
// a session puts back prev.
func (s *Service) endAuth(ctx context.Context, ev Event, prev AuthState, sess *Session, err error) {
	s.commit(func() {
		if err != nil {
			st := s.State()
			st.Status = StatusError
			st.Loading = false
			st.Err = TranslateError(err)
			s.setState(st)
			s.publish(ctx, EventAuthError, st)
			return
		}
		if s.State().Status != StatusAuthenticating {
			return
		}
		if sess == nil {
			prev.Loading = false
			s.setState(prev)
			return
		}
		st := s.derive(ctx, ev, sess)
		s.setState(st)
		s.publish(ctx, ev, st)
	})
}

// ============================================================================
// Operations
// ============================================================================

// SignUp validates every field in form order, stopping at the first
// failure, then registers the sanitized input.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*SignUpResult, error) {
	clean, err := s.prepareSignUp(in)
	if err != nil {
		return nil, err
	}

	log := s.logger(ctx).With("email", slogx.MaskEmail(clean.Email))

	prev := s.beginAuth()
	res, err := s.repo.SignUp(ctx, clean)
	if err != nil {
		log.Info("sign up failed", "code", CodeOf(err))
		s.endAuth(ctx, EventSignedIn, prev, nil, err)
		return nil, err
	}

	log.Info("signed up", "user_id", res.User.ID, "confirmed", res.Session != nil)
	s.endAuth(ctx, EventSignedIn, prev, res.Session, nil)
	return res, nil
}

func (s *Service) prepareSignUp(in SignUpInput) (SignUpInput, error) {
	firstName := validate.Sanitize(in.FirstName)
	lastName := validate.Sanitize(in.LastName)

	checks := []struct {
		field string
		res   func() validate.Result
	}{
		{"firstName", func() validate.Result { return validate.Name(firstName, "First name") }},
		{"lastName", func() validate.Result { return validate.Name(lastName, "Last name") }},
		{"email", func() validate.Result { return validate.Email(validate.SanitizeEmail(in.Email)) }},
		{"password", func() validate.Result { return validate.Password(in.Password, s.policy) }},
		{"dateOfBirth", func() validate.Result { return validate.DateOfBirth(in.DateOfBirth, s.now()) }},
		{"gender", func() validate.Result { return validate.Gender(in.Gender) }},
		{"phone", func() validate.Result { return validate.Phone(in.CountryCode, in.Phone) }},
	}
	for _, c := range checks {
		if r := c.res(); !r.Valid {
			return SignUpInput{}, validationError(c.field, r.Message)
		}
	}

	code, phone, err := normalizePhone(in.CountryCode, in.Phone)
	if err != nil {
		return SignUpInput{}, err
	}

	return SignUpInput{
		Email:        validate.SanitizeEmail(in.Email),
		Password:     in.Password,
		FirstName:    firstName,
		LastName:     lastName,
		DateOfBirth:  in.DateOfBirth,
		Gender:       in.Gender,
		CountryCode:  code,
		Phone:        phone,
		CaptchaToken: strings.TrimSpace(in.CaptchaToken),
	}, nil
}

// SignIn consults the per-e-mail limiter before anything else. A refused
// attempt never reaches the provider. A successful sign-in clears the
// address's attempt history.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (*Session, error) {
	email := validate.SanitizeEmail(in.Email)
	log := s.logger(ctx).With("email", slogx.MaskEmail(email))

	if email != "" {
		allowed, err := s.limiter.IsAllowed(ctx, email, s.maxAttempts, s.window)
		if err != nil {
			log.Error("sign-in limiter unavailable", "err", err)
			return nil, newError(CodeUnknown)
		}
		if !allowed {
			log.Warn("sign-in rate limited")
			return nil, newError(CodeRateLimited)
		}
	}

	if r := validate.Email(email); !r.Valid {
		return nil, validationError("email", r.Message)
	}
	if in.Password == "" {
		return nil, validationError("password", "Password is required")
	}

	prev := s.beginAuth()
	sess, err := s.repo.SignIn(ctx, SignInInput{
		Email:        email,
		Password:     in.Password,
		CaptchaToken: strings.TrimSpace(in.CaptchaToken),
	})
	if err != nil {
		log.Info("sign in failed", "code", CodeOf(err))
		s.endAuth(ctx, EventSignedIn, prev, nil, err)
		return nil, err
	}

	if err := s.limiter.Reset(ctx, email); err != nil {
		log.Warn("failed to reset sign-in attempts", "err", err)
	}
	log.Info("signed in", "user_id", sess.User.ID)
	s.endAuth(ctx, EventSignedIn, prev, sess, nil)
	return sess, nil
}

// SignOut forgets cached freshness state, then ends the provider session.
func (s *Service) SignOut(ctx context.Context) error {
	s.expiry.clear()
	if err := s.repo.SignOut(ctx); err != nil {
		return err
	}

	// Providers announce SIGNED_OUT themselves; this covers one that did not.
	s.commit(func() {
		if s.State().Status != StatusSignedOut {
			st := AuthState{Status: StatusSignedOut}
			s.setState(st)
			s.publish(ctx, EventSignedOut, st)
		}
	})
	return nil
}

// GetSession returns the held session, refreshing it first when it is
// within RefreshMargin of expiry. It returns nil, nil when signed out.
func (s *Service) GetSession(ctx context.Context) (*Session, error) {
	sess, err := s.repo.GetSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if !NeedsRefresh(s.expiry.expiry(sess), s.now()) {
		return sess, nil
	}

	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// Another caller may have refreshed while we waited.
	sess, err = s.repo.GetSession(ctx)
	if err != nil || sess == nil {
		return nil, err
	}
	if !NeedsRefresh(s.expiry.expiry(sess), s.now()) {
		return sess, nil
	}

	refreshed, err := s.repo.RefreshSession(ctx)
	if err != nil {
		s.logger(ctx).Info("session refresh failed", "code", CodeOf(err))
		return nil, err
	}
	return refreshed, nil
}

// Restore re-derives the state from a persisted session and publishes it as
// EventInitialSession.
func (s *Service) Restore(ctx context.Context) (AuthState, error) {
	sess, err := s.GetSession(ctx)
	if err != nil && CodeOf(err) != CodeNoSession {
		return s.State(), err
	}

	var st AuthState
	s.commit(func() {
		st = s.derive(ctx, EventInitialSession, sess)
		s.setState(st)
		s.publish(ctx, EventInitialSession, st)
	})
	return st, nil
}

// RequestPasswordReset sends a reset link. Unknown addresses are not
// reported, so the result does not reveal whether an account exists.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = validate.SanitizeEmail(email)
	if r := validate.Email(email); !r.Valid {
		return validationError("email", r.Message)
	}

	err := s.repo.RequestPasswordReset(ctx, email)
	if CodeOf(err) == CodeUserNotFound {
		return nil
	}
	return err
}

// UpdatePassword changes the signed-in user's password after checking it
// against the password policy.
func (s *Service) UpdatePassword(ctx context.Context, password string) error {
	if r := validate.Password(password, s.policy); !r.Valid {
		return validationError("password", r.Message)
	}
	return s.repo.UpdatePassword(ctx, password)
}

// GetProfile returns the signed-in user's profile.
func (s *Service) GetProfile(ctx context.Context) (*Profile, error) {
	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.GetProfile(ctx, userID)
}

// UpdateProfile validates every present field before writing anything and
// publishes EventProfileUpdated on success.
func (s *Service) UpdateProfile(ctx context.Context, u ProfileUpdate) (*Profile, error) {
	clean, err := PrepareProfileUpdate(u, s.now())
	if err != nil {
		return nil, err
	}

	userID, err := s.currentUserID(ctx)
	if err != nil {
		return nil, err
	}

	profile, err := s.repo.UpdateProfile(ctx, userID, clean)
	if err != nil {
		return nil, err
	}

	s.commit(func() {
		st := s.State()
		if st.User != nil && st.User.ID == userID {
			st.Profile = profile
			s.setState(st)
			s.publish(ctx, EventProfileUpdated, st)
		}
	})
	return profile, nil
}

func (s *Service) currentUserID(ctx context.Context) (string, error) {
	if st := s.State(); st.User != nil {
		return st.User.ID, nil
	}
	sess, err := s.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", newError(CodeNoSession)
	}
	return sess.User.ID, nil
}
