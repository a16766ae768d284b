// Package identitytest provides an in-memory identity provider and profile
// table for tests of code that depends on package identity.
package identitytest

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aussiebroadwan/medrec/pkg/cryptox"
	"github.com/aussiebroadwan/medrec/pkg/identity"
	"github.com/aussiebroadwan/medrec/pkg/idx"
	"github.com/aussiebroadwan/medrec/pkg/jwtx"
)

// Operation names accepted by Calls, FailNext and PanicNext.
const (
	OpSignUp        = "SignUp"
	OpSignIn        = "SignInWithPassword"
	OpSignOut       = "SignOut"
	OpGetSession    = "GetSession"
	OpGetUser       = "GetUser"
	OpRefresh       = "RefreshSession"
	OpResetPassword = "ResetPasswordForEmail"
	OpUpdateUser    = "UpdateUser"
	OpSelectProfile = "SelectProfile"
	OpUpdateProfile = "UpdateProfile"
)

const issuer = "identitytest"

// ResetRequest records one ResetPasswordForEmail call.
type ResetRequest struct {
	Email      string
	RedirectTo string
}

type account struct {
	user     identity.User
	password string
}

// Fake implements identity.Provider and identity.ProfileTable. Access tokens
// are real HS256 JWTs so they can be verified and inspected.
type Fake struct {
	// AutoConfirm makes SignUp return a session, like a provider with
	// e-mail confirmation disabled.
	AutoConfirm bool
	// TTL is the access token lifetime. Defaults to one hour.
	TTL time.Duration

	mu       sync.Mutex
	signer   *jwtx.HS256
	now      func() time.Time
	accounts map[string]*account // by e-mail
	refresh  map[string]string   // refresh token -> user id
	session  *identity.Session
	profiles map[string]identity.ProfileRow
	calls    map[string]int
	failures map[string]error
	panics   map[string]any
	resets   []ResetRequest

	lmu       sync.Mutex
	listeners []listener
	nextID    int
}

type listener struct {
	id int
	fn identity.Listener
}

var (
	_ identity.Provider     = (*Fake)(nil)
	_ identity.ProfileTable = (*Fake)(nil)
)

func New() *Fake {
	signer, err := jwtx.NewHS256([]byte("identitytest-secret"))
	if err != nil {
		panic(err)
	}
	return &Fake{
		TTL:      time.Hour,
		signer:   signer,
		now:      time.Now,
		accounts: make(map[string]*account),
		refresh:  make(map[string]string),
		profiles: make(map[string]identity.ProfileRow),
		calls:    make(map[string]int),
		failures: make(map[string]error),
		panics:   make(map[string]any),
	}
}

// SetNow overrides the clock used for token issue and expiry.
func (f *Fake) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of calls across every operation.
func (f *Fake) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// FailNext makes the next call to op return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = err
}

// PanicNext makes the next call to op panic with v.
func (f *Fake) PanicNext(op string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panics[op] = v
}

// ResetRequests returns every recorded password reset request.
func (f *Fake) ResetRequests() []ResetRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.resets)
}

// AddUser registers a confirmed account with an empty profile row.
func (f *Fake) AddUser(email, password string) identity.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(email, password, nil)
}

// IssueToken mints an access token for an existing account without
// touching the held session.
func (f *Fake) IssueToken(email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	acc, ok := f.accounts[email]
	if !ok {
		return "", fmt.Errorf("identitytest: unknown account %q", email)
	}
	return f.signer.Sign(jwtx.NewAccessClaims(acc.user.ID, email, idx.New().String(), f.TTL, issuer, f.now()))
}

// SetSessionExpiry rewrites the held session's expiry.
func (f *Fake) SetSessionExpiry(at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session != nil {
		f.session.ExpiresAt = at.Unix()
	}
}

// SetProfile replaces the stored row for row.ID.
func (f *Fake) SetProfile(row identity.ProfileRow) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[row.ID] = row
}

// Emit delivers an event to listeners as if the provider pushed it.
func (f *Fake) Emit(ctx context.Context, ev identity.Event, sess *identity.Session) {
	f.lmu.Lock()
	ls := slices.Clone(f.listeners)
	f.lmu.Unlock()

	for _, l := range ls {
		var cp *identity.Session
		if sess != nil {
			s := *sess
			cp = &s
		}
		l.fn(ctx, ev, cp)
	}
}

// enter counts the call and applies injected failures. It must be called
// without f.mu held.
func (f *Fake) enter(op string) error {
	f.mu.Lock()
	f.calls[op]++
	v, doPanic := f.panics[op]
	delete(f.panics, op)
	err := f.failures[op]
	delete(f.failures, op)
	f.mu.Unlock()

	if doPanic {
		panic(v)
	}
	return err
}

func (f *Fake) addLocked(email, password string, meta map[string]any) identity.User {
	now := f.now().UTC()
	id := uuid.NewString()
	user := identity.User{
		ID:               id,
		Email:            email,
		Role:             "authenticated",
		EmailConfirmedAt: &now,
		UserMetadata:     meta,
		Identities:       []identity.Identity{{ID: id, UserID: id, Provider: "email"}},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	f.accounts[email] = &account{user: user, password: password}

	row := identity.ProfileRow{ID: id, CreatedAt: now, UpdatedAt: now}
	row.FirstName, _ = meta["first_name"].(string)
	row.LastName, _ = meta["last_name"].(string)
	row.FullName, _ = meta["full_name"].(string)
	row.Gender, _ = meta["gender"].(string)
	row.CountryCode, _ = meta["country_code"].(string)
	row.Phone, _ = meta["phone"].(string)
	row.DateOfBirth, _ = meta["date_of_birth"].(string)
	f.profiles[id] = row
	return user
}

func (f *Fake) newSessionLocked(user identity.User) (*identity.Session, error) {
	now := f.now()
	tok, err := f.signer.Sign(jwtx.NewAccessClaims(user.ID, user.Email, idx.New().String(), f.TTL, issuer, now))
	if err != nil {
		return nil, err
	}
	refresh, err := cryptox.GenerateKey(cryptox.KeySize)
	if err != nil {
		return nil, err
	}
	f.refresh[refresh] = user.ID

	s := &identity.Session{
		AccessToken:  tok,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(f.TTL.Seconds()),
		ExpiresAt:    now.Add(f.TTL).Unix(),
		User:         user,
	}
	f.session = s
	cp := *s
	return &cp, nil
}

func (f *Fake) userByID(id string) (identity.User, bool) {
	for _, a := range f.accounts {
		if a.user.ID == id {
			return a.user, true
		}
	}
	return identity.User{}, false
}

func (f *Fake) SignUp(ctx context.Context, p identity.SignUpParams) (*identity.User, *identity.Session, error) {
	if err := f.enter(OpSignUp); err != nil {
		return nil, nil, err
	}
	f.mu.Lock()

	if existing, ok := f.accounts[p.Email]; ok {
		// Mirror the provider: an obfuscated user with no identities.
		u := existing.user
		u.Identities = []identity.Identity{}
		f.mu.Unlock()
		return &u, nil, nil
	}

	user := f.addLocked(p.Email, p.Password, p.Data)
	if !f.AutoConfirm {
		f.mu.Unlock()
		return &user, nil, nil
	}

	sess, err := f.newSessionLocked(user)
	f.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	f.Emit(ctx, identity.EventSignedIn, sess)
	return &user, sess, nil
}

func (f *Fake) SignInWithPassword(ctx context.Context, p identity.SignInParams) (*identity.Session, error) {
	if err := f.enter(OpSignIn); err != nil {
		return nil, err
	}
	f.mu.Lock()

	acc, ok := f.accounts[p.Email]
	if !ok || acc.password != p.Password {
		f.mu.Unlock()
		return nil, &identity.APIError{Status: http.StatusBadRequest, Code: "invalid_credentials", Message: "Invalid login credentials"}
	}

	sess, err := f.newSessionLocked(acc.user)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f.Emit(ctx, identity.EventSignedIn, sess)
	return sess, nil
}

func (f *Fake) SignOut(ctx context.Context) error {
	if err := f.enter(OpSignOut); err != nil {
		return err
	}
	f.mu.Lock()
	if f.session != nil {
		delete(f.refresh, f.session.RefreshToken)
	}
	f.session = nil
	f.mu.Unlock()

	f.Emit(ctx, identity.EventSignedOut, nil)
	return nil
}

func (f *Fake) GetSession(context.Context) (*identity.Session, error) {
	if err := f.enter(OpGetSession); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return nil, nil
	}
	cp := *f.session
	return &cp, nil
}

func (f *Fake) GetUser(_ context.Context, token string) (*identity.User, error) {
	if err := f.enter(OpGetUser); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if token == "" {
		if f.session == nil {
			return nil, identity.ErrNoSession
		}
		token = f.session.AccessToken
	}

	claims, err := f.signer.Verify(token, f.now())
	if err != nil {
		return nil, &identity.APIError{Status: http.StatusUnauthorized, Code: "bad_jwt", Message: "invalid JWT: " + err.Error()}
	}
	user, ok := f.userByID(claims.Subject)
	if !ok {
		return nil, &identity.APIError{Status: http.StatusNotFound, Code: "user_not_found", Message: "User not found"}
	}
	return &user, nil
}

func (f *Fake) RefreshSession(ctx context.Context) (*identity.Session, error) {
	if err := f.enter(OpRefresh); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.session == nil {
		f.mu.Unlock()
		return nil, identity.ErrNoSession
	}

	delete(f.refresh, f.session.RefreshToken)
	sess, err := f.newSessionLocked(f.session.User)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	f.Emit(ctx, identity.EventTokenRefreshed, sess)
	return sess, nil
}

func (f *Fake) ResetPasswordForEmail(_ context.Context, email, redirectTo string) error {
	if err := f.enter(OpResetPassword); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets = append(f.resets, ResetRequest{Email: email, RedirectTo: redirectTo})
	return nil
}

func (f *Fake) UpdateUser(ctx context.Context, attrs identity.UserAttributes) (*identity.User, error) {
	if err := f.enter(OpUpdateUser); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.session == nil {
		f.mu.Unlock()
		return nil, identity.ErrNoSession
	}

	acc := f.accounts[f.session.User.Email]
	if attrs.Password != "" {
		acc.password = attrs.Password
	}
	acc.user.UpdatedAt = f.now().UTC()
	f.session.User = acc.user
	user := acc.user
	sess := *f.session
	f.mu.Unlock()

	f.Emit(ctx, identity.EventUserUpdated, &sess)
	return &user, nil
}

func (f *Fake) OnAuthStateChange(l identity.Listener) func() {
	f.lmu.Lock()
	f.nextID++
	id := f.nextID
	f.listeners = append(f.listeners, listener{id: id, fn: l})
	f.lmu.Unlock()

	return func() {
		f.lmu.Lock()
		defer f.lmu.Unlock()
		f.listeners = slices.DeleteFunc(f.listeners, func(e listener) bool { return e.id == id })
	}
}

func (f *Fake) SelectProfile(_ context.Context, userID string) (identity.ProfileRow, error) {
	if err := f.enter(OpSelectProfile); err != nil {
		return identity.ProfileRow{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	row, ok := f.profiles[userID]
	if !ok {
		return identity.ProfileRow{}, identity.ErrProfileNotFound
	}
	return row, nil
}

func (f *Fake) UpdateProfile(_ context.Context, userID string, patch identity.ProfilePatch) (identity.ProfileRow, error) {
	if err := f.enter(OpUpdateProfile); err != nil {
		return identity.ProfileRow{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := identity.ValidatePatch(patch); err != nil {
		return identity.ProfileRow{}, err
	}

	row, ok := f.profiles[userID]
	if !ok {
		return identity.ProfileRow{}, identity.ErrProfileNotFound
	}
	if err := ApplyPatch(&row, patch); err != nil {
		return identity.ProfileRow{}, err
	}
	row.UpdatedAt = f.now().UTC()
	f.profiles[userID] = row
	return row, nil
}
