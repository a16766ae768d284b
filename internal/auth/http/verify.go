package http

import (
	"net/http"

	"github.com/aussiebroadwan/medrec/pkg/authsdk"
	"github.com/aussiebroadwan/medrec/pkg/httpx"
)

// VerifyHandler godoc
//
//	@Summary		Verify an access token
//	@Description	Resolves the bearer token with the identity provider and returns the user it belongs to.
//	@Description	Any failure to reach a definite answer rejects the token.
//	@Tags			Auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	authsdk.VerifyResult
//	@Failure		401	{object}	httpx.ErrorBody	"missing, malformed or rejected token"
//	@Failure		429	{object}	httpx.ErrorBody
//	@Failure		503	{object}	httpx.ErrorBody	"identity provider not configured"
//	@Router			/auth/verify [post].
func VerifyHandler(w http.ResponseWriter, r *http.Request) {
	user, ok := httpx.UserFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, httpx.CodeUnauthenticated, "unauthenticated")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, authsdk.VerifyResult{Valid: true, User: &user})
}
