package http

import (
	"net/http"

	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
)

// statusFor maps a result code to the HTTP status it is served with.
func statusFor(code authsdk.Code) int {
	switch code {
	case authsdk.CodeValidation, authsdk.CodeWeakPassword:
		return http.StatusBadRequest
	case authsdk.CodeRateLimited, authsdk.CodeProviderRateLimited:
		return http.StatusTooManyRequests
	case authsdk.CodeNoSession, authsdk.CodeInvalidCredentials:
		return http.StatusUnauthorized
	case authsdk.CodeUserNotFound:
		return http.StatusNotFound
	case authsdk.CodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeResultError writes err as an ErrorBody. Only the curated message of
// an *authsdk.Error ever reaches the client.
func writeResultError(w http.ResponseWriter, err error) {
	e := authsdk.TranslateError(err)
	httpx.WriteJSON(w, statusFor(e.Code), httpx.ErrorBody{
		Code:  string(e.Code),
		Error: e.Message,
		Field: e.Field,
	})
}
