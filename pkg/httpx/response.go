package httpx

import (
	"encoding/json"
	"net/http"
)

// Error codes written by WriteError from this package.
const (
	CodeUnauthenticated   = "UNAUTHENTICATED"
	CodeAuthUnavailable   = "AUTH_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeBadRequest        = "BAD_REQUEST"
)

// ErrorBody is the JSON shape of every error response. It carries a stable
// code and a generic message only.
type ErrorBody struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It automatically sets the Content-Type header and Cache-Control headers.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an ErrorBody. msg must be safe to show to the caller.
func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorBody{Code: code, Error: msg})
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
// This is commonly required for sensitive responses like tokens.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
