package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/aussiebroadwan/medrec/pkg/jwtx"
	"github.com/aussiebroadwan/medrec/pkg/storage"
)

const (
	// DefaultSessionStorageKey is where the session is persisted. The name
	// contains "auth" and "token" so storage.Split routes it to the secure
	// backend.
	DefaultSessionStorageKey = "medrec-auth-token"

	defaultHTTPTimeout = 10 * time.Second
	clientInfo         = "medrec-go/1"
)

var ErrMissingConfig = errors.New("identity: url and anon key are required")

type Config struct {
	URL     string
	AnonKey string

	// HTTPClient defaults to a client with a 10s timeout.
	HTTPClient *http.Client

	// Storage persists the session between runs. Defaults to memory.
	Storage    storage.Storage
	StorageKey string

	Logger *slog.Logger
	Now    func() time.Time
}

// Client is a Provider backed by a GoTrue-compatible HTTP API. It holds at
// most one session, persists it through Storage and notifies listeners of
// every change. Safe for concurrent use.
type Client struct {
	api        *rest
	store      storage.Storage
	storageKey string
	log        *slog.Logger
	now        func() time.Time

	mu      sync.Mutex
	session *Session
	loaded  bool

	lmu       sync.Mutex
	listeners []listenerEntry
	nextID    uint64
}

type listenerEntry struct {
	id uint64
	fn Listener
}

var _ Provider = (*Client)(nil)

func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, ErrMissingConfig
	}
	if _, err := url.ParseRequestURI(cfg.URL); err != nil {
		return nil, fmt.Errorf("identity: invalid url: %w", err)
	}

	c := &Client{
		api:        newRest(cfg),
		store:      cfg.Storage,
		storageKey: cfg.StorageKey,
		log:        cfg.Logger,
		now:        cfg.Now,
	}
	if c.store == nil {
		c.store = storage.NewMemory()
	}
	if c.storageKey == "" {
		c.storageKey = DefaultSessionStorageKey
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, token string, body, out any) error {
	return c.api.do(ctx, apiRequest{
		method: method,
		path:   path,
		query:  query,
		token:  token,
		body:   body,
	}, out)
}

type securityMeta struct {
	CaptchaToken string `json:"captcha_token,omitempty"`
}

func (c *Client) SignUp(ctx context.Context, p SignUpParams) (*User, *Session, error) {
	body := map[string]any{
		"email":                p.Email,
		"password":             p.Password,
		"data":                 p.Data,
		"gotrue_meta_security": securityMeta{CaptchaToken: p.CaptchaToken},
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, "", body, &raw); err != nil {
		return nil, nil, err
	}

	// With auto-confirm the provider answers with a session; otherwise with
	// the bare user.
	var sess Session
	if err := json.Unmarshal(raw, &sess); err == nil && sess.AccessToken != "" {
		c.normalize(&sess)
		if err := c.setSession(ctx, &sess); err != nil {
			return nil, nil, err
		}
		c.emit(ctx, EventSignedIn, &sess)
		user := sess.User
		return &user, &sess, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, fmt.Errorf("identity: decode user: %w", err)
	}
	return &user, nil, nil
}

func (c *Client) SignInWithPassword(ctx context.Context, p SignInParams) (*Session, error) {
	body := map[string]any{
		"email":                p.Email,
		"password":             p.Password,
		"gotrue_meta_security": securityMeta{CaptchaToken: p.CaptchaToken},
	}

	var sess Session
	q := url.Values{"grant_type": {"password"}}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, "", body, &sess); err != nil {
		return nil, err
	}

	c.normalize(&sess)
	if err := c.setSession(ctx, &sess); err != nil {
		return nil, err
	}
	c.emit(ctx, EventSignedIn, &sess)
	return &sess, nil
}

// SignOut revokes the held session remotely and forgets it locally. A
// session the provider no longer knows about (401, 403, 404) is still
// cleared locally; any other failure leaves it in place.
func (c *Client) SignOut(ctx context.Context) error {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return err
	}

	if sess != nil {
		err := c.do(ctx, http.MethodPost, "/auth/v1/logout", nil, sess.AccessToken, nil, nil)
		if err != nil && !IsStatus(err, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound) {
			return err
		}
	}

	if err := c.clearSession(ctx); err != nil {
		return err
	}
	c.emit(ctx, EventSignedOut, nil)
	return nil
}

// GetSession returns the held session, loading it from storage on first use.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		if err := c.loadLocked(ctx); err != nil {
			return nil, err
		}
	}
	if c.session == nil {
		return nil, nil
	}
	cp := *c.session
	return &cp, nil
}

func (c *Client) GetUser(ctx context.Context, token string) (*User, error) {
	if token == "" {
		sess, err := c.GetSession(ctx)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, ErrNoSession
		}
		token = sess.AccessToken
	}

	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, token, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// RefreshSession exchanges the held refresh token for a new session. When
// the provider rejects the refresh token the session is dropped and
// listeners see EventSignedOut.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	cur, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if cur == nil || cur.RefreshToken == "" {
		return nil, ErrNoSession
	}

	var sess Session
	q := url.Values{"grant_type": {"refresh_token"}}
	body := map[string]string{"refresh_token": cur.RefreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, "", body, &sess); err != nil {
		if IsStatus(err, http.StatusBadRequest, http.StatusUnauthorized) {
			c.log.Info("refresh token rejected, clearing session", "user_id", cur.User.ID)
			if cerr := c.clearSession(ctx); cerr == nil {
				c.emit(ctx, EventSignedOut, nil)
			}
		}
		return nil, err
	}

	c.normalize(&sess)
	if err := c.setSession(ctx, &sess); err != nil {
		return nil, err
	}
	c.emit(ctx, EventTokenRefreshed, &sess)
	return &sess, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", q, "", map[string]string{"email": email}, nil)
}

func (c *Client) UpdateUser(ctx context.Context, attrs UserAttributes) (*User, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoSession
	}

	var user User
	if err := c.do(ctx, http.MethodPut, "/auth/v1/user", nil, sess.AccessToken, attrs, &user); err != nil {
		return nil, err
	}

	sess.User = user
	if err := c.setSession(ctx, sess); err != nil {
		return nil, err
	}
	c.emit(ctx, EventUserUpdated, sess)
	return &user, nil
}

// AccessToken returns the held session's access token. It satisfies
// TokenSource for RestProfiles.
func (c *Client) AccessToken(ctx context.Context) (string, error) {
	sess, err := c.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if sess == nil {
		return "", ErrNoSession
	}
	return sess.AccessToken, nil
}

func (c *Client) OnAuthStateChange(l Listener) func() {
	c.lmu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: l})
	c.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.lmu.Lock()
			defer c.lmu.Unlock()
			for i, e := range c.listeners {
				if e.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// emit calls every listener in registration order on the caller's
// goroutine. No client lock is held while listeners run.
func (c *Client) emit(ctx context.Context, ev Event, sess *Session) {
	c.lmu.Lock()
	ls := make([]listenerEntry, len(c.listeners))
	copy(ls, c.listeners)
	c.lmu.Unlock()

	for _, l := range ls {
		var cp *Session
		if sess != nil {
			s := *sess
			cp = &s
		}
		l.fn(ctx, ev, cp)
	}
}

// normalize fills ExpiresAt from expires_in or, failing that, the access
// token's exp claim.
func (c *Client) normalize(s *Session) {
	if s.ExpiresAt != 0 {
		return
	}
	if s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
		return
	}
	if exp, err := jwtx.ExpiresAt(s.AccessToken); err == nil {
		s.ExpiresAt = exp.Unix()
	}
}
