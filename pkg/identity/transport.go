package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// rest is the shared HTTP plumbing for the auth and profile endpoints.
type rest struct {
	baseURL string
	anonKey string
	http    *http.Client
}

func newRest(cfg Config) *rest {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &rest{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    hc,
	}
}

type apiRequest struct {
	method  string
	path    string
	query   url.Values
	token   string // bearer; the anon key when empty
	headers map[string]string
	body    any
}

// do performs one API call and decodes a 2xx body into out (which may be
// nil). Non-2xx responses become *APIError; transport failures wrap
// ErrNetwork.
func (r *rest) do(ctx context.Context, ar apiRequest, out any) error {
	var rdr io.Reader
	if ar.body != nil {
		b, err := json.Marshal(ar.body)
		if err != nil {
			return fmt.Errorf("identity: encode request: %w", err)
		}
		rdr = bytes.NewReader(b)
	}

	u := r.baseURL + ar.path
	if len(ar.query) > 0 {
		u += "?" + ar.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, ar.method, u, rdr)
	if err != nil {
		return fmt.Errorf("identity: create request: %w", err)
	}

	token := ar.token
	if token == "" {
		token = r.anonKey
	}
	req.Header.Set("apikey", r.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Info", clientInfo)
	if ar.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range ar.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("identity: decode response: %w", err)
	}
	return nil
}
