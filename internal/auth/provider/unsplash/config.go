package unsplash

import (
	"net/http"

	"unsplash-auth/internal/auth/engine"
)

// Config configures the strategy. The zero value stands for "no
// configuration" and fails validation on the missing client ID.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scope        []string

	// AuthorizationURL and TokenURL default to the Unsplash endpoints.
	AuthorizationURL string
	TokenURL         string
	ScopeSeparator   string

	// PassReqToCallback hands the originating request to the verify
	// callback. Defaults to false.
	PassReqToCallback bool

	StateStore engine.StateStore
	PKCE       bool
	TrustProxy bool
	HTTPClient *http.Client
}

// resolveOptions applies the Unsplash defaults and validates the result.
// cfg is a copy; the caller's value is never modified.
func resolveOptions(cfg Config, verify engine.VerifyFunc) (engine.Options, error) {
	if cfg.AuthorizationURL == "" {
		cfg.AuthorizationURL = AuthorizationURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = TokenURL
	}
	if cfg.ScopeSeparator == "" {
		cfg.ScopeSeparator = " "
	}

	switch {
	case verify == nil:
		return engine.Options{}, &engine.ConfigError{Option: "verify"}
	case cfg.AuthorizationURL == "":
		return engine.Options{}, &engine.ConfigError{Option: "authorizationURL"}
	case cfg.TokenURL == "":
		return engine.Options{}, &engine.ConfigError{Option: "tokenURL"}
	case cfg.ClientID == "":
		return engine.Options{}, &engine.ConfigError{Option: "clientID"}
	}

	return engine.Options{
		ClientID:          cfg.ClientID,
		ClientSecret:      cfg.ClientSecret,
		CallbackURL:       cfg.CallbackURL,
		Scope:             append([]string(nil), cfg.Scope...),
		ScopeSeparator:    cfg.ScopeSeparator,
		AuthorizationURL:  cfg.AuthorizationURL,
		TokenURL:          cfg.TokenURL,
		PassReqToCallback: cfg.PassReqToCallback,
		TrustProxy:        cfg.TrustProxy,
		StateStore:        cfg.StateStore,
		PKCE:              cfg.PKCE,
		HTTPClient:        cfg.HTTPClient,
	}, nil
}
