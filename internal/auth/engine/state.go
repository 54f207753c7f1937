package engine

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"unsplash-auth/internal/utils"
)

// ErrInvalidState is returned by a StateStore when the callback's state
// does not match what was issued.
var ErrInvalidState = errors.New("invalid authorization request state")

const (
	stateCookieName = "__oauth_state"
	pkceCookieName  = "__oauth_pkce"
	stateTTL        = 5 * time.Minute
)

// StateData is what travels with an authorization request between the
// redirect and the callback.
type StateData struct {
	CodeVerifier string
}

// StateStore issues the state parameter and checks it on the callback.
// Verify must consume the state so it cannot be replayed.
type StateStore interface {
	Store(w http.ResponseWriter, r *http.Request, data StateData) (state string, err error)
	Verify(w http.ResponseWriter, r *http.Request, state string) (StateData, error)
}

// CookieStateStore keeps the state and PKCE verifier in short-lived
// HttpOnly cookies bound to the browser.
type CookieStateStore struct {
	Secure bool
	TTL    time.Duration
}

func (s CookieStateStore) ttl() time.Duration {
	if s.TTL <= 0 {
		return stateTTL
	}
	return s.TTL
}

func (s CookieStateStore) Store(w http.ResponseWriter, _ *http.Request, data StateData) (string, error) {
	state := utils.RandomString(32)

	s.set(w, stateCookieName, state, int(s.ttl().Seconds()))
	if data.CodeVerifier != "" {
		s.set(w, pkceCookieName, data.CodeVerifier, int(s.ttl().Seconds()))
	}

	return state, nil
}

func (s CookieStateStore) Verify(w http.ResponseWriter, r *http.Request, state string) (StateData, error) {
	cookie, err := r.Cookie(stateCookieName)
	if err != nil || state == "" {
		return StateData{}, ErrInvalidState
	}

	// one-shot
	s.set(w, stateCookieName, "", -1)

	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		return StateData{}, ErrInvalidState
	}

	var data StateData
	if pkce, err := r.Cookie(pkceCookieName); err == nil {
		data.CodeVerifier = pkce.Value
		s.set(w, pkceCookieName, "", -1)
	}

	return data, nil
}

func (s CookieStateStore) set(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}
