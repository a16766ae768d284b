package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
)

var (
	// ErrNetwork wraps transport failures talking to the provider.
	ErrNetwork = errors.New("identity: network error")
	// ErrNoSession is returned by operations that need a held session.
	ErrNoSession = errors.New("identity: no session")
	// ErrProfileNotFound is returned when no profile row exists for a user.
	ErrProfileNotFound = errors.New("identity: profile not found")
	// ErrUnknownColumn is returned for a ProfilePatch naming a column outside
	// ProfileColumns.
	ErrUnknownColumn = errors.New("identity: unknown profile column")
)

// APIError is an error response from the provider.
type APIError struct {
	Status  int
	Code    string // provider error code, e.g. "invalid_credentials"
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("identity: %d: %s", e.Status, e.Message)
}

// parseAPIError understands the provider's two error bodies:
//
//	{"code":400,"error_code":"invalid_credentials","msg":"Invalid login credentials"}
//	{"error":"invalid_grant","error_description":"Invalid login credentials"}
//
// and PostgREST's {"code":"PGRST116","message":"..."}.
func parseAPIError(status int, body []byte) *APIError {
	var raw struct {
		Code             json.RawMessage `json:"code"`
		ErrorCode        string          `json:"error_code"`
		Msg              string          `json:"msg"`
		Message          string          `json:"message"`
		Error            string          `json:"error"`
		ErrorDescription string          `json:"error_description"`
	}
	e := &APIError{Status: status}
	if err := json.Unmarshal(body, &raw); err != nil {
		e.Message = http.StatusText(status)
		return e
	}

	var strCode string
	_ = json.Unmarshal(raw.Code, &strCode)

	e.Code = firstNonEmpty(raw.ErrorCode, raw.Error, strCode)
	e.Message = firstNonEmpty(raw.Msg, raw.ErrorDescription, raw.Message, http.StatusText(status))
	return e
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// ValidatePatch rejects patches naming non-writable columns.
func ValidatePatch(p ProfilePatch) error {
	for col := range p {
		if !slices.Contains(ProfileColumns, col) {
			return fmt.Errorf("%w: %s", ErrUnknownColumn, col)
		}
	}
	return nil
}

// IsStatus reports whether err is an *APIError with one of the statuses.
func IsStatus(err error, statuses ...int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return slices.Contains(statuses, apiErr.Status)
}

// IsCode reports whether err is an *APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && strings.EqualFold(apiErr.Code, code)
}
