package http

import (
	"encoding/json"
	"net/http"

	"github.com/aussiebroadwan/medrec/internal/auth/service"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
)

const maxBodyBytes = 64 << 10

type PasswordResetHandler struct {
	Service *service.PasswordResetService
}

// ServeHTTP godoc
//
//	@Summary		Request a password reset link
//	@Description	Mails a reset link when the address has an account. The response never reveals
//	@Description	whether it does. Each address gets a small hourly budget.
//	@Tags			Auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body	authsdk.PasswordResetRequest	true	"address to reset"
//	@Success		202
//	@Failure		400	{object}	httpx.ErrorBody
//	@Failure		429	{object}	httpx.ErrorBody
//	@Failure		502	{object}	httpx.ErrorBody	"identity provider unreachable"
//	@Router			/auth/password/reset [post].
func (h *PasswordResetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Service == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeAuthUnavailable, "password reset is not available")
		return
	}

	var req authsdk.PasswordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid request body")
		return
	}

	if err := h.Service.RequestReset(r.Context(), req.Email, r.Header.Get("Origin")); err != nil {
		writeResultError(w, err)
		return
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusAccepted)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
