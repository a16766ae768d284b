package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource yields the bearer token row-level security is evaluated
// against.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func(context.Context) (string, error) { return token, nil }
}

// RestProfiles is a ProfileTable backed by a PostgREST-compatible API
// exposing the profiles table at /rest/v1/profiles.
type RestProfiles struct {
	api    *rest
	tokens TokenSource
	now    func() time.Time
}

var _ ProfileTable = (*RestProfiles)(nil)

// NewRestProfiles builds a profile table client. tokens supplies the
// caller's access token per request.
func NewRestProfiles(cfg Config, tokens TokenSource) (*RestProfiles, error) {
	if cfg.URL == "" || cfg.AnonKey == "" {
		return nil, ErrMissingConfig
	}
	if tokens == nil {
		return nil, errors.New("identity: token source is required")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RestProfiles{api: newRest(cfg), tokens: tokens, now: now}, nil
}

const (
	profilesPath = "/rest/v1/profiles"
	objectAccept = "application/vnd.pgrst.object+json"
)

func (p *RestProfiles) SelectProfile(ctx context.Context, userID string) (ProfileRow, error) {
	var row ProfileRow
	if err := p.call(ctx, http.MethodGet, userID, nil, &row); err != nil {
		return ProfileRow{}, err
	}
	return row, nil
}

func (p *RestProfiles) UpdateProfile(ctx context.Context, userID string, patch ProfilePatch) (ProfileRow, error) {
	if err := ValidatePatch(patch); err != nil {
		return ProfileRow{}, err
	}

	body := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		// A cleared list is stored as an empty array, not NULL.
		if s, ok := v.([]string); ok && s == nil {
			v = []string{}
		}
		body[k] = v
	}
	body["updated_at"] = p.now().UTC().Format(time.RFC3339Nano)

	var row ProfileRow
	if err := p.call(ctx, http.MethodPatch, userID, body, &row); err != nil {
		return ProfileRow{}, err
	}
	return row, nil
}

// call requests a single row. PostgREST answers 406 (PGRST116) when the
// filter matched no rows.
func (p *RestProfiles) call(ctx context.Context, method, userID string, body, out any) error {
	token, err := p.tokens(ctx)
	if err != nil {
		return err
	}

	err = p.api.do(ctx, apiRequest{
		method: method,
		path:   profilesPath,
		query:  url.Values{"id": {"eq." + userID}, "select": {"*"}},
		token:  token,
		headers: map[string]string{
			"Accept": objectAccept,
			"Prefer": "return=representation",
		},
		body: body,
	}, out)

	if IsStatus(err, http.StatusNotAcceptable) || IsCode(err, "PGRST116") {
		return ErrProfileNotFound
	}
	if err != nil {
		return fmt.Errorf("profiles %s: %w", strings.ToLower(method), err)
	}
	return nil
}
