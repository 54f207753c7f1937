package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"unsplash-auth/internal/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHooks struct {
	profile    *auth.Profile
	profileErr error
	params     url.Values
	parsed     error

	gotToken string
	gotBody  []byte
	gotCode  int
}

func (h *stubHooks) UserProfile(_ context.Context, accessToken string) (*auth.Profile, error) {
	h.gotToken = accessToken
	return h.profile, h.profileErr
}

func (h *stubHooks) AuthorizationParams(map[string]string) url.Values {
	return h.params
}

func (h *stubHooks) ParseErrorResponse(body []byte, status int) error {
	h.gotBody = body
	h.gotCode = status
	return h.parsed
}

func acceptAll(context.Context, *http.Request, string, string, *auth.Profile) (string, error) {
	return "user-1", nil
}

func baseOptions() Options {
	return Options{
		ClientID:         "ABC123",
		ClientSecret:     "secret123",
		AuthorizationURL: "https://provider.test/oauth/authorize",
		TokenURL:         "https://provider.test/oauth/token",
	}
}

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, form url.Values)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		handler(w, r.PostForm)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeToken(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token":  "access-1",
		"refresh_token": "refresh-1",
		"token_type":    "bearer",
	})
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		verify VerifyFunc
		option string
	}{
		{name: "missing verify", mutate: func(*Options) {}, verify: nil, option: "verify"},
		{name: "missing authorization url", mutate: func(o *Options) { o.AuthorizationURL = "" }, verify: acceptAll, option: "authorizationURL"},
		{name: "missing token url", mutate: func(o *Options) { o.TokenURL = "" }, verify: acceptAll, option: "tokenURL"},
		{name: "missing client id", mutate: func(o *Options) { o.ClientID = "" }, verify: acceptAll, option: "clientID"},
		{name: "pkce without store", mutate: func(o *Options) { o.PKCE = true }, verify: acceptAll, option: "pkce"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := baseOptions()
			tc.mutate(&opts)

			_, err := New(opts, tc.verify, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidConfig)

			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.option, cfgErr.Option)
		})
	}
}

func TestRedirectURL(t *testing.T) {
	e, err := New(baseOptions(), acceptAll, nil)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/oauth/login/test", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

	require.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t, "https://provider.test/oauth/authorize?response_type=code&client_id=ABC123", res.RedirectURL)
}

func TestRedirectURLWithScopeCallbackAndExtras(t *testing.T) {
	opts := baseOptions()
	opts.AuthorizationURL = "https://provider.test/oauth/authorize?tenant=acme"
	opts.CallbackURL = "/oauth/callback/test"
	opts.Scope = []string{"public", "read_user"}

	hooks := &stubHooks{params: url.Values{"prompt": {"consent"}, "permissions": {"full"}}}
	e, err := New(opts, acceptAll, hooks)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "http://app.test/oauth/login/test", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

	require.Equal(t, OutcomeRedirect, res.Outcome)
	assert.Equal(t,
		"https://provider.test/oauth/authorize?tenant=acme"+
			"&permissions=full&prompt=consent&response_type=code"+
			"&redirect_uri=http%3A%2F%2Fapp.test%2Foauth%2Fcallback%2Ftest"+
			"&scope=public+read_user&client_id=ABC123",
		res.RedirectURL,
	)
}

func TestRedirectScopeOverrideAndSeparator(t *testing.T) {
	opts := baseOptions()
	opts.Scope = []string{"public"}
	opts.ScopeSeparator = ","

	e, err := New(opts, acceptAll, nil)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/login", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{
		Scope: []string{"public", "write_likes"},
	})

	u, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	assert.Equal(t, "public,write_likes", u.Query().Get("scope"))
}

func TestResolveCallbackURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://app.test/oauth/login/x", nil)
	r.Header.Set("X-Forwarded-Proto", "https, http")

	got, err := resolveCallbackURL(r, "/cb", false)
	require.NoError(t, err)
	assert.Equal(t, "http://app.test/cb", got)

	got, err = resolveCallbackURL(r, "/cb", true)
	require.NoError(t, err)
	assert.Equal(t, "https://app.test/cb", got)

	got, err = resolveCallbackURL(r, "https://elsewhere.test/cb", true)
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.test/cb", got)
}

func TestAccessDenied(t *testing.T) {
	e, err := New(baseOptions(), acceptAll, nil)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet,
		"/cb?error=access_denied&error_description=Permissions+error", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

	assert.Equal(t, OutcomeFail, res.Outcome)
	assert.Equal(t, "Permissions error", res.Message)
	assert.Zero(t, res.Status)
}

func TestProviderErrorOnCallback(t *testing.T) {
	e, err := New(baseOptions(), acceptAll, nil)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet,
		"/cb?error=server_error&error_description=Down&error_uri=https%3A%2F%2Fdocs", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

	require.Equal(t, OutcomeError, res.Outcome)

	var authErr *AuthorizationError
	require.ErrorAs(t, res.Err, &authErr)
	assert.Equal(t, "server_error", authErr.Code)
	assert.Equal(t, "Down", authErr.Error())
	assert.Equal(t, "https://docs", authErr.URI)
	assert.Equal(t, http.StatusBadGateway, authErr.Status())
}

func TestCodeExchangeSuccess(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		assert.Equal(t, "authorization_code", form.Get("grant_type"))
		assert.Equal(t, "code-1", form.Get("code"))
		assert.Equal(t, "ABC123", form.Get("client_id"))
		assert.Equal(t, "secret123", form.Get("client_secret"))
		writeToken(w)
	})

	opts := baseOptions()
	opts.TokenURL = srv.URL

	hooks := &stubHooks{profile: &auth.Profile{Provider: "test", ID: "p-1"}}

	var gotReq *http.Request
	var gotAccess, gotRefresh string
	verify := func(_ context.Context, req *http.Request, access, refresh string, p *auth.Profile) (string, error) {
		gotReq = req
		gotAccess, gotRefresh = access, refresh
		return "user-" + p.ID, nil
	}

	e, err := New(opts, verify, hooks)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/cb?code=code-1", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

	require.Equal(t, OutcomeSuccess, res.Outcome, "err: %v", res.Err)
	assert.Equal(t, "user-p-1", res.UserID)
	assert.Equal(t, "access-1", hooks.gotToken)
	assert.Equal(t, "access-1", gotAccess)
	assert.Equal(t, "refresh-1", gotRefresh)
	assert.Nil(t, gotReq, "request must not be passed unless configured")
}

func TestPassReqToCallback(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, _ url.Values) { writeToken(w) })

	opts := baseOptions()
	opts.TokenURL = srv.URL
	opts.PassReqToCallback = true

	var gotReq *http.Request
	var gotProfile *auth.Profile
	verify := func(_ context.Context, req *http.Request, _, _ string, p *auth.Profile) (string, error) {
		gotReq, gotProfile = req, p
		return "user-1", nil
	}

	e, err := New(opts, verify, nil)
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/cb?code=abc", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

	require.Equal(t, OutcomeSuccess, res.Outcome)
	assert.Same(t, r, gotReq)
	require.NotNil(t, gotProfile)
	assert.Equal(t, "oauth2", gotProfile.Provider)
}

func TestVerifyOutcomes(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, _ url.Values) { writeToken(w) })

	boom := errors.New("db down")
	tests := []struct {
		name    string
		result  string
		err     error
		outcome Outcome
		message string
	}{
		{name: "rejection", err: &auth.Rejection{Message: "suspended"}, outcome: OutcomeFail, message: "suspended"},
		{name: "empty user", outcome: OutcomeFail},
		{name: "internal error", err: boom, outcome: OutcomeError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := baseOptions()
			opts.TokenURL = srv.URL

			verify := func(context.Context, *http.Request, string, string, *auth.Profile) (string, error) {
				return tc.result, tc.err
			}

			e, err := New(opts, verify, &stubHooks{profile: &auth.Profile{}})
			require.NoError(t, err)

			r := httptest.NewRequest(http.MethodGet, "/cb?code=abc", nil)
			res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

			assert.Equal(t, tc.outcome, res.Outcome)
			if tc.outcome == OutcomeFail {
				assert.Equal(t, tc.message, res.Message)
				assert.Equal(t, http.StatusUnauthorized, res.Status)
			} else {
				assert.ErrorIs(t, res.Err, boom)
			}
		})
	}
}

func TestProfileErrorSurfaces(t *testing.T) {
	srv := newTokenServer(t, func(w http.ResponseWriter, _ url.Values) { writeToken(w) })

	opts := baseOptions()
	opts.TokenURL = srv.URL

	profileErr := errors.New("profile unavailable")
	called := false
	verify := func(context.Context, *http.Request, string, string, *auth.Profile) (string, error) {
		called = true
		return "user-1", nil
	}

	e, err := New(opts, verify, &stubHooks{profileErr: profileErr})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodGet, "/cb?code=abc", nil)
	res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.ErrorIs(t, res.Err, profileErr)
	assert.False(t, called)
}

func TestTokenErrorParsing(t *testing.T) {
	errorBody := func(w http.ResponseWriter, _ url.Values) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"The code has expired"}`))
	}
	textBody := func(w http.ResponseWriter, _ url.Values) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`upstream exploded`))
	}

	t.Run("provider parser wins", func(t *testing.T) {
		srv := newTokenServer(t, errorBody)
		opts := baseOptions()
		opts.TokenURL = srv.URL

		custom := errors.New("invalid_grant")
		hooks := &stubHooks{parsed: custom}
		e, err := New(opts, acceptAll, hooks)
		require.NoError(t, err)

		res := e.Authenticate(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/cb?code=abc", nil), AuthenticateOptions{})

		require.Equal(t, OutcomeError, res.Outcome)
		assert.Same(t, custom, res.Err)
		assert.Equal(t, http.StatusUnauthorized, hooks.gotCode)
		assert.JSONEq(t, `{"error":"invalid_grant","error_description":"The code has expired"}`, string(hooks.gotBody))
	})

	t.Run("generic parser fallback", func(t *testing.T) {
		srv := newTokenServer(t, errorBody)
		opts := baseOptions()
		opts.TokenURL = srv.URL

		e, err := New(opts, acceptAll, &stubHooks{})
		require.NoError(t, err)

		res := e.Authenticate(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/cb?code=abc", nil), AuthenticateOptions{})

		var tokenErr *TokenError
		require.ErrorAs(t, res.Err, &tokenErr)
		assert.Equal(t, "invalid_grant", tokenErr.Code)
		assert.Equal(t, "The code has expired", tokenErr.Error())
		assert.Equal(t, http.StatusUnauthorized, tokenErr.Status)
	})

	t.Run("unparseable body", func(t *testing.T) {
		srv := newTokenServer(t, textBody)
		opts := baseOptions()
		opts.TokenURL = srv.URL

		e, err := New(opts, acceptAll, &stubHooks{})
		require.NoError(t, err)

		res := e.Authenticate(httptest.NewRecorder(),
			httptest.NewRequest(http.MethodGet, "/cb?code=abc", nil), AuthenticateOptions{})

		var internal *InternalOAuthError
		require.ErrorAs(t, res.Err, &internal)
		assert.Equal(t, "failed to obtain access token", internal.Message)
	})
}

func TestStateAndPKCERoundTrip(t *testing.T) {
	var gotVerifier string
	srv := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		gotVerifier = form.Get("code_verifier")
		writeToken(w)
	})

	opts := baseOptions()
	opts.TokenURL = srv.URL
	opts.StateStore = CookieStateStore{Secure: true}
	opts.PKCE = true

	e, err := New(opts, acceptAll, &stubHooks{profile: &auth.Profile{}})
	require.NoError(t, err)

	login := httptest.NewRecorder()
	res := e.Authenticate(login, httptest.NewRequest(http.MethodGet, "/login", nil), AuthenticateOptions{})
	require.Equal(t, OutcomeRedirect, res.Outcome)

	redirect, err := url.Parse(res.RedirectURL)
	require.NoError(t, err)
	state := redirect.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "S256", redirect.Query().Get("code_challenge_method"))
	require.NotEmpty(t, redirect.Query().Get("code_challenge"))

	cb := httptest.NewRequest(http.MethodGet, "/cb?code=abc&state="+url.QueryEscape(state), nil)
	for _, c := range login.Result().Cookies() {
		cb.AddCookie(c)
	}

	res = e.Authenticate(httptest.NewRecorder(), cb, AuthenticateOptions{})
	require.Equal(t, OutcomeSuccess, res.Outcome, "err: %v", res.Err)
	assert.NotEmpty(t, gotVerifier)
}

func TestInvalidState(t *testing.T) {
	opts := baseOptions()
	opts.StateStore = CookieStateStore{}

	e, err := New(opts, acceptAll, nil)
	require.NoError(t, err)

	cb := httptest.NewRequest(http.MethodGet, "/cb?code=abc&state=forged", nil)
	cb.AddCookie(&http.Cookie{Name: stateCookieName, Value: "issued"})

	res := e.Authenticate(httptest.NewRecorder(), cb, AuthenticateOptions{})
	assert.Equal(t, OutcomeFail, res.Outcome)
	assert.Equal(t, invalidStateMessage, res.Message)
	assert.Equal(t, http.StatusForbidden, res.Status)
}

func TestGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errors":["OAuth error: The access token is invalid"]}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	e, err := New(baseOptions(), acceptAll, nil)
	require.NoError(t, err)

	body, resp, err := e.Get(context.Background(), srv.URL, "good")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))

	body, _, err = e.Get(context.Background(), srv.URL, "bad")
	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Contains(t, string(body), "access token is invalid")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "redirect", OutcomeRedirect.String())
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "fail", OutcomeFail.String())
	assert.Equal(t, "error", OutcomeError.String())
	assert.Equal(t, "unknown", Outcome(0).String())
}

func TestTokenExchangeKeepsNoCookies(t *testing.T) {
	var cookies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies = append(cookies, r.Header.Get("Cookie"))
		http.SetCookie(w, &http.Cookie{Name: "_provider_session", Value: "first-user", Path: "/"})
		writeToken(w)
	}))
	t.Cleanup(srv.Close)

	opts := baseOptions()
	opts.TokenURL = srv.URL

	e, err := New(opts, acceptAll, nil)
	require.NoError(t, err)

	for _, code := range []string{"code-a", "code-b"} {
		r := httptest.NewRequest(http.MethodGet, "/cb?code="+code, nil)
		res := e.Authenticate(httptest.NewRecorder(), r, AuthenticateOptions{})
		require.Equal(t, OutcomeSuccess, res.Outcome, "err: %v", res.Err)
	}

	assert.Equal(t, []string{"", ""}, cookies)
	assert.Nil(t, e.client.GetClient().Jar)
}
