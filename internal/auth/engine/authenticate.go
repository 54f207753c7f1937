package engine

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"unsplash-auth/internal/auth"

	"golang.org/x/oauth2"
)

type Outcome int

const (
	OutcomeRedirect Outcome = iota + 1
	OutcomeSuccess
	OutcomeFail
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRedirect:
		return "redirect"
	case OutcomeSuccess:
		return "success"
	case OutcomeFail:
		return "fail"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Result is the single action an Authenticate call resolves to.
type Result struct {
	Outcome Outcome

	RedirectURL string // OutcomeRedirect

	UserID  string        // OutcomeSuccess
	Profile *auth.Profile // OutcomeSuccess, nil when the profile is skipped

	Message string // OutcomeFail
	Status  int    // OutcomeFail

	Err error // OutcomeError
}

// AuthenticateOptions are per-request overrides.
type AuthenticateOptions struct {
	CallbackURL string
	Scope       []string

	// Params are provider-specific options; Hooks.AuthorizationParams
	// decides which of them reach the authorization URL.
	Params map[string]string
}

const invalidStateMessage = "Invalid authorization request state."

// Authenticate handles one step of the authorization-code flow: a provider
// error on the callback, a code to exchange, or a fresh login to redirect.
// w is only written to by the state store.
func (e *Engine) Authenticate(w http.ResponseWriter, r *http.Request, opts AuthenticateOptions) Result {
	query := r.URL.Query()

	if code := query.Get("error"); code != "" {
		// a denial is a plain failure; the host picks the status
		if code == "access_denied" {
			return fail(query.Get("error_description"), 0)
		}
		return failure(&AuthorizationError{
			Code:        code,
			Description: query.Get("error_description"),
			URI:         query.Get("error_uri"),
		})
	}

	callbackURL := opts.CallbackURL
	if callbackURL == "" {
		callbackURL = e.opts.CallbackURL
	}
	if callbackURL != "" {
		resolved, err := resolveCallbackURL(r, callbackURL, e.opts.TrustProxy)
		if err != nil {
			return failure(err)
		}
		callbackURL = resolved
	}

	if code := query.Get("code"); code != "" {
		return e.callback(w, r, code, query.Get("state"), callbackURL)
	}

	return e.redirect(w, r, opts, callbackURL)
}

func (e *Engine) callback(w http.ResponseWriter, r *http.Request, code, state, callbackURL string) Result {
	ctx := r.Context()

	var data StateData
	if e.opts.StateStore != nil {
		var err error
		data, err = e.opts.StateStore.Verify(w, r, state)
		if errors.Is(err, ErrInvalidState) {
			return fail(invalidStateMessage, http.StatusForbidden)
		}
		if err != nil {
			return failure(err)
		}
	}

	token, err := e.exchange(ctx, code, callbackURL, data.CodeVerifier)
	if err != nil {
		return failure(err)
	}

	profile, err := e.hooks.UserProfile(ctx, token.AccessToken)
	if err != nil {
		return failure(err)
	}

	var req *http.Request
	if e.opts.PassReqToCallback {
		req = r
	}

	userID, err := e.verify(ctx, req, token.AccessToken, token.RefreshToken, profile)

	var rejection *auth.Rejection
	if errors.As(err, &rejection) {
		return fail(rejection.Message, http.StatusUnauthorized)
	}
	if err != nil {
		return failure(err)
	}
	if userID == "" {
		return fail("", http.StatusUnauthorized)
	}

	return Result{
		Outcome: OutcomeSuccess,
		UserID:  userID,
		Profile: profile,
	}
}

func (e *Engine) exchange(ctx context.Context, code, callbackURL, verifier string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, e.client.GetClient())

	var opts []oauth2.AuthCodeOption
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}

	token, err := e.oauthConfig(callbackURL).Exchange(ctx, code, opts...)
	if err == nil {
		return token, nil
	}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) && len(re.Body) > 0 {
		status := 0
		if re.Response != nil {
			status = re.Response.StatusCode
		}
		if perr := e.hooks.ParseErrorResponse(re.Body, status); perr != nil {
			return nil, perr
		}
		if perr := parseTokenError(re.Body, status); perr != nil {
			return nil, perr
		}
	}

	return nil, &InternalOAuthError{Message: "failed to obtain access token", Err: err}
}

func (e *Engine) redirect(w http.ResponseWriter, r *http.Request, opts AuthenticateOptions, callbackURL string) Result {
	scope := opts.Scope
	if len(scope) == 0 {
		scope = e.opts.Scope
	}

	var state, challenge string
	if e.opts.StateStore != nil {
		var data StateData
		if e.opts.PKCE {
			data.CodeVerifier = oauth2.GenerateVerifier()
			challenge = oauth2.S256ChallengeFromVerifier(data.CodeVerifier)
		}

		var err error
		state, err = e.opts.StateStore.Store(w, r, data)
		if err != nil {
			return failure(err)
		}
	}

	q := &orderedQuery{}

	extra := e.hooks.AuthorizationParams(opts.Params)
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range extra[k] {
			q.add(k, v)
		}
	}

	q.add("response_type", "code")
	if callbackURL != "" {
		q.add("redirect_uri", callbackURL)
	}
	if len(scope) > 0 {
		q.add("scope", strings.Join(scope, e.opts.ScopeSeparator))
	}
	if state != "" {
		q.add("state", state)
	}
	if challenge != "" {
		q.add("code_challenge", challenge)
		q.add("code_challenge_method", "S256")
	}
	q.add("client_id", e.opts.ClientID)

	return Result{
		Outcome:     OutcomeRedirect,
		RedirectURL: q.apply(*e.authURL),
	}
}

// orderedQuery encodes parameters in insertion order; url.Values sorts keys.
type orderedQuery struct {
	keys   []string
	values []string
}

func (q *orderedQuery) add(k, v string) {
	q.keys = append(q.keys, k)
	q.values = append(q.values, v)
}

// apply appends the parameters to u. Parameters already on u are kept in
// front unless overridden.
func (q *orderedQuery) apply(u url.URL) string {
	existing := u.Query()
	for _, k := range q.keys {
		existing.Del(k)
	}

	var b strings.Builder
	b.WriteString(existing.Encode())
	for i, k := range q.keys {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(q.values[i]))
	}

	u.RawQuery = b.String()
	return u.String()
}

func resolveCallbackURL(r *http.Request, callbackURL string, trustProxy bool) (string, error) {
	ref, err := url.Parse(callbackURL)
	if err != nil {
		return "", &InternalOAuthError{Message: "invalid callback URL", Err: err}
	}
	if ref.IsAbs() {
		return callbackURL, nil
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if trustProxy {
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
		}
	}

	base := &url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path}
	return base.ResolveReference(ref).String(), nil
}

func fail(message string, status int) Result {
	return Result{Outcome: OutcomeFail, Message: message, Status: status}
}

func failure(err error) Result {
	return Result{Outcome: OutcomeError, Err: err}
}
