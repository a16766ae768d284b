package authsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/medrec/pkg/identity"
)

// ============================================================================
// Error Codes
// ============================================================================

// Code is a stable, user-facing error category.
type Code string

const (
	CodeValidation          Code = "VALIDATION_ERROR"
	CodeRateLimited         Code = "RATE_LIMITED"
	CodeInvalidCredentials  Code = "INVALID_CREDENTIALS"
	CodeUserNotFound        Code = "USER_NOT_FOUND"
	CodeEmailExists         Code = "EMAIL_EXISTS"
	CodeWeakPassword        Code = "WEAK_PASSWORD"
	CodeNetwork             Code = "NETWORK_ERROR"
	CodeCaptchaFailed       Code = "CAPTCHA_FAILED"
	CodeProviderRateLimited Code = "PROVIDER_RATE_LIMITED"
	CodeEmailNotConfirmed   Code = "EMAIL_NOT_CONFIRMED"
	CodeNoSession           Code = "NO_SESSION"
	CodeUnknown             Code = "UNKNOWN_ERROR"
)

var messages = map[Code]string{
	CodeRateLimited:         "Too many sign-in attempts. Please wait a few minutes and try again.",
	CodeInvalidCredentials:  "Invalid email or password",
	CodeUserNotFound:        "No account found for this email",
	CodeEmailExists:         "An account with this email already exists",
	CodeWeakPassword:        "Password is too weak. Please choose a stronger password.",
	CodeNetwork:             "Network error. Please check your connection and try again.",
	CodeCaptchaFailed:       "CAPTCHA verification failed. Please try again.",
	CodeProviderRateLimited: "Too many requests. Please try again later.",
	CodeEmailNotConfirmed:   "Please confirm your email address before signing in",
	CodeNoSession:           "Your session has expired. Please sign in again.",
	CodeUnknown:             "An unexpected error occurred. Please try again.",
}

// ============================================================================
// Error
// ============================================================================

// Error is the only error type returned by Repository and Service methods.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`

	// Field is the camelCase input field a validation error refers to.
	Field string `json:"field,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches another *Error by code, so errors.Is(err, &Error{Code: c})
// works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code) *Error {
	return &Error{Code: code, Message: messages[code]}
}

// NewError returns an *Error carrying code's standard message.
func NewError(code Code) *Error { return newError(code) }

func validationError(field, msg string) *Error {
	return &Error{Code: CodeValidation, Message: msg, Field: field}
}

// CodeOf returns err's code: "" for nil and CodeUnknown for errors that are
// not an *Error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// ============================================================================
// Translation
// ============================================================================

// providerCodes maps the identity provider's error_code values.
var providerCodes = map[string]Code{
	"invalid_credentials":        CodeInvalidCredentials,
	"user_not_found":             CodeUserNotFound,
	"user_already_exists":        CodeEmailExists,
	"email_exists":               CodeEmailExists,
	"weak_password":              CodeWeakPassword,
	"captcha_failed":             CodeCaptchaFailed,
	"over_request_rate_limit":    CodeProviderRateLimited,
	"over_email_send_rate_limit": CodeProviderRateLimited,
	"over_sms_send_rate_limit":   CodeProviderRateLimited,
	"email_not_confirmed":        CodeEmailNotConfirmed,
	"session_not_found":          CodeNoSession,
	"session_expired":            CodeNoSession,
	"refresh_token_not_found":    CodeNoSession,
	"refresh_token_already_used": CodeNoSession,
	"bad_jwt":                    CodeNoSession,
}

// messageRules are tried in order against the lower-cased message when the
// provider sent no code we recognise.
var messageRules = []struct {
	needles []string
	code    Code
}{
	{[]string{"captcha"}, CodeCaptchaFailed},
	{[]string{"already registered", "already exists", "already been registered"}, CodeEmailExists},
	{[]string{"invalid login", "invalid credentials"}, CodeInvalidCredentials},
	{[]string{"not confirmed"}, CodeEmailNotConfirmed},
	{[]string{"rate limit", "too many requests"}, CodeProviderRateLimited},
	{[]string{"weak", "password should"}, CodeWeakPassword},
	{[]string{"user not found"}, CodeUserNotFound},
	{[]string{"network", "fetch failed", "connection refused", "timeout"}, CodeNetwork},
}

// TranslateError converts any failure from the identity layer into an
// *Error. Structured provider codes are preferred; the message text is only
// inspected when no code matched. It returns nil for nil.
func TranslateError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	switch {
	case errors.Is(err, identity.ErrNetwork),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return newError(CodeNetwork)
	case errors.Is(err, identity.ErrNoSession):
		return newError(CodeNoSession)
	case errors.Is(err, identity.ErrProfileNotFound):
		return &Error{Code: CodeUserNotFound, Message: "Profile not found"}
	case errors.Is(err, identity.ErrUnknownColumn):
		return &Error{Code: CodeValidation, Message: "Unknown profile field"}
	}

	var apiErr *identity.APIError
	if errors.As(err, &apiErr) {
		if code, ok := providerCodes[strings.ToLower(apiErr.Code)]; ok {
			return newError(code)
		}
		if apiErr.Status == http.StatusTooManyRequests {
			return newError(CodeProviderRateLimited)
		}
		if te := fromMessage(apiErr.Message); te != nil {
			return te
		}
		return newError(CodeUnknown)
	}

	if te := fromMessage(err.Error()); te != nil {
		return te
	}
	return newError(CodeUnknown)
}

func fromMessage(msg string) *Error {
	msg = strings.ToLower(msg)
	for _, rule := range messageRules {
		for _, n := range rule.needles {
			if strings.Contains(msg, n) {
				return newError(rule.code)
			}
		}
	}
	return nil
}
