package provider

import (
	"net/http"

	"unsplash-auth/internal/auth/engine"
)

// Strategy is what the HTTP layer needs from a configured provider.
// Implementations return identity facts only and must not create users
// or sessions.
type Strategy interface {
	// Name returns the provider identifier (e.g. "unsplash").
	Name() string

	// Authenticate runs one step of the provider's sign-in flow for the
	// request: a redirect to the provider, or the outcome of a callback.
	Authenticate(
		w http.ResponseWriter,
		r *http.Request,
		opts engine.AuthenticateOptions,
	) engine.Result
}
