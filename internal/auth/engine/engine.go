// Package engine runs the OAuth 2.0 authorization-code flow for a provider.
// Providers plug in through Hooks; the engine owns redirects, state, code
// exchange and invoking the verify callback.
package engine

import (
	"context"
	"net/http"
	"net/url"
	"slices"

	"unsplash-auth/internal/auth"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
)

// VerifyFunc decides which user, if any, the token and profile belong to.
// req is the originating request only when Options.PassReqToCallback is set;
// otherwise it is nil. Returning an *auth.Rejection, or an empty user ID with
// a nil error, fails the login.
type VerifyFunc func(
	ctx context.Context,
	req *http.Request,
	accessToken string,
	refreshToken string,
	profile *auth.Profile,
) (userID string, err error)

// Hooks are the provider-specific extension points.
type Hooks interface {
	// UserProfile fetches and normalizes the authenticated user's profile.
	UserProfile(ctx context.Context, accessToken string) (*auth.Profile, error)

	// AuthorizationParams returns extra query parameters for the
	// authorization redirect, derived from per-request options.
	AuthorizationParams(params map[string]string) url.Values

	// ParseErrorResponse interprets a failed token response. A nil return
	// lets the engine fall back to its generic parsing.
	ParseErrorResponse(body []byte, status int) error
}

// DefaultHooks is used when a strategy supplies no hooks.
type DefaultHooks struct{}

func (DefaultHooks) UserProfile(context.Context, string) (*auth.Profile, error) {
	return &auth.Profile{Provider: "oauth2"}, nil
}

func (DefaultHooks) AuthorizationParams(map[string]string) url.Values { return nil }

func (DefaultHooks) ParseErrorResponse([]byte, int) error { return nil }

type Options struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string

	Scope          []string
	ScopeSeparator string

	AuthorizationURL string
	TokenURL         string

	PassReqToCallback bool

	// TrustProxy honours X-Forwarded-Proto when resolving a relative CallbackURL.
	TrustProxy bool

	// StateStore enables the state parameter. PKCE requires it.
	StateStore StateStore
	PKCE       bool

	// HTTPClient is used for the token exchange and Get. The default client
	// keeps no cookie jar, so nothing carries over between users.
	HTTPClient *http.Client
}

type Engine struct {
	opts    Options
	authURL *url.URL
	verify  VerifyFunc
	hooks   Hooks
	client  *resty.Client
}

func New(opts Options, verify VerifyFunc, hooks Hooks) (*Engine, error) {
	if verify == nil {
		return nil, &ConfigError{Option: "verify"}
	}
	if opts.AuthorizationURL == "" {
		return nil, &ConfigError{Option: "authorizationURL"}
	}
	if opts.TokenURL == "" {
		return nil, &ConfigError{Option: "tokenURL"}
	}
	if opts.ClientID == "" {
		return nil, &ConfigError{Option: "clientID"}
	}
	if opts.PKCE && opts.StateStore == nil {
		return nil, &ConfigError{Option: "pkce", Reason: "requires a state store"}
	}

	authURL, err := url.Parse(opts.AuthorizationURL)
	if err != nil {
		return nil, &ConfigError{Option: "authorizationURL", Reason: err.Error()}
	}

	if opts.ScopeSeparator == "" {
		opts.ScopeSeparator = " "
	}
	opts.Scope = slices.Clone(opts.Scope)

	if hooks == nil {
		hooks = DefaultHooks{}
	}

	client := resty.New().SetCookieJar(nil)
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	}

	return &Engine{
		opts:    opts,
		authURL: authURL,
		verify:  verify,
		hooks:   hooks,
		client:  client,
	}, nil
}

func (e *Engine) oauthConfig(callbackURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     e.opts.ClientID,
		ClientSecret: e.opts.ClientSecret,
		RedirectURL:  callbackURL,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.opts.AuthorizationURL,
			TokenURL:  e.opts.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}
