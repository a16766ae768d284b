package authsdk

// ============================================================================
// Server Wire Types
// ============================================================================

// VerifyResult is the outcome of resolving a bearer token. Error is set
// whenever Valid is false.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	User  *User  `json:"user,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// PasswordResetRequest is the body of POST /auth/password/reset.
type PasswordResetRequest struct {
	Email string `json:"email"`
}

// HealthResponse is returned by /livez and /readyz. Checks maps each
// dependency to "ok" or a short failure reason.
type HealthResponse struct {
	Status  string            `json:"status"`
	Uptime  string            `json:"uptime"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}
