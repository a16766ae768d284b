/*
Package authsdk is the client-side authentication SDK for medrec.

# Overview

The package sits between an application (CLI, UI) and the remote identity
provider reached through package identity. It is organised in two layers:

  - Repository: one method per identity operation. It never panics and
    never returns a provider error as-is; every failure is an *Error.
  - Service: the orchestrator. It validates input, applies the sign-in
    rate limiter, keeps sessions fresh and publishes an AuthState to
    subscribers whenever the provider reports a transition.

Create a Service from a Repository:

	repo, err := authsdk.NewRepository(authsdk.RepositoryConfig{
		Provider: client,   // *identity.Client
		Profiles: profiles, // *identity.RestProfiles
		AppURL:   "https://app.example.com",
	})
	svc, err := authsdk.NewService(authsdk.Config{Repository: repo})
	defer svc.Close()

# Results

Every public method returns (T, error) where a non-nil error is an *Error
with a stable Code. Branch on the code rather than the message:

	_, err := svc.SignIn(ctx, authsdk.SignInInput{Email: email, Password: pw})
	switch authsdk.CodeOf(err) {
	case "":
		// signed in
	case authsdk.CodeRateLimited:
		// too many attempts for this address
	case authsdk.CodeValidation:
		var e *authsdk.Error
		errors.As(err, &e)
		fmt.Println(e.Field, e.Message)
	}

TranslateError is the single place provider failures are mapped to codes.
Structured provider codes are matched first; the message text is only
consulted when no code matched.

# Auth State

The Service owns the subscription to the provider's event stream. On every
event it re-derives the AuthState (fetching the profile when a user is
present) and calls each listener in registration order:

	unsubscribe := svc.OnAuthStateChange(func(ctx context.Context, ev authsdk.Event, st authsdk.AuthState) {
		render(st)
	})
	defer unsubscribe()

Delivery is synchronous and serialised: one event is fully delivered before
the next is derived. Events are not coalesced. Listeners must not call the
Service's mutating methods from inside the callback.

# Sessions

GetSession returns the held session and transparently refreshes it when it
is within RefreshMargin of expiry. There is no background timer. Restore
rebuilds the state from a persisted session at startup.

# Thread Safety

Repository and Service are safe for concurrent use.
*/
package authsdk
