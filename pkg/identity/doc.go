// Package identity is the gateway to the remote identity provider.
//
// Provider is the minimal contract the rest of the module consumes: password
// sign-up and sign-in, sign-out, session access and refresh, user lookup by
// token, password reset and user updates, plus a subscribable stream of
// auth-state events. ProfileTable is the row-level profile store that sits
// next to it.
//
// Client implements Provider against a GoTrue-compatible HTTP API
// (/auth/v1/*) and RestProfiles implements ProfileTable against a
// PostgREST-compatible one (/rest/v1/profiles). Errors returned by the wire
// are *APIError; transport failures wrap ErrNetwork.
package identity
