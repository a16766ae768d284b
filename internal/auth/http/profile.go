package http

import (
	"net/http"

	"github.com/aussiebroadwan/medrec/internal/auth/service"
	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
)

type ProfileHandler struct {
	Service *service.ProfileService
}

// HandleGet godoc
//
//	@Summary		Get the caller's profile
//	@Tags			Profile
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.Profile
//	@Failure		401	{object}	httpx.ErrorBody
//	@Failure		404	{object}	httpx.ErrorBody	"no profile row for the caller"
//	@Router			/v1/profile [get].
func (h *ProfileHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	p, err := h.Service.GetProfile(r.Context(), user.ID)
	if err != nil {
		writeResultError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

// HandlePatch godoc
//
//	@Summary		Update the caller's profile
//	@Description	Only the fields present in the body are written. Text is sanitized and every
//	@Description	field is validated before anything is stored.
//	@Tags			Profile
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		authsdk.ProfileUpdate	true	"fields to change"
//	@Success		200		{object}	authsdk.Profile
//	@Failure		400		{object}	httpx.ErrorBody	"validation failure, field names the offender"
//	@Failure		401		{object}	httpx.ErrorBody
//	@Failure		404		{object}	httpx.ErrorBody
//	@Router			/v1/profile [patch].
func (h *ProfileHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	user, ok := h.caller(w, r)
	if !ok {
		return
	}

	var u authsdk.ProfileUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, httpx.CodeBadRequest, "invalid request body")
		return
	}

	p, err := h.Service.UpdateProfile(r.Context(), user.ID, u)
	if err != nil {
		writeResultError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, p)
}

func (h *ProfileHandler) caller(w http.ResponseWriter, r *http.Request) (authsdk.User, bool) {
	if h.Service == nil {
		httpx.WriteError(w, http.StatusServiceUnavailable, httpx.CodeInternal, "profiles are not available")
		return authsdk.User{}, false
	}
	user, ok := httpx.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthenticated, "unauthenticated")
		return authsdk.User{}, false
	}
	return user, true
}
