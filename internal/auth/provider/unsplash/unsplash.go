// Package unsplash authenticates users with Unsplash accounts over OAuth 2.0.
//
// The strategy holds a generic engine.Engine configured with the Unsplash
// endpoints and plugs itself in as the engine's hooks: it fetches and
// normalizes the /me profile, adds the Unsplash authorization parameters,
// and interprets token endpoint errors.
package unsplash

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"unsplash-auth/internal/auth"
	"unsplash-auth/internal/auth/engine"
)

const (
	ProviderName = "unsplash"

	AuthorizationURL = "https://unsplash.com/oauth/authorize"
	TokenURL         = "https://unsplash.com/oauth/token"
	ProfileURL       = "https://api.unsplash.com/me"
)

var (
	errNotObject    = errors.New("unsplash: profile response is not a JSON object")
	errTrailingData = errors.New("unsplash: unexpected data after profile JSON")
)

// authorizationParamKeys are the per-request options forwarded to the
// authorization URL, in the order they are checked.
var authorizationParamKeys = []string{"permissions", "prompt"}

type Strategy struct {
	engine     *engine.Engine
	profileURL string
}

var _ engine.Hooks = (*Strategy)(nil)

// New builds an Unsplash strategy. It performs no network I/O.
func New(cfg Config, verify engine.VerifyFunc) (*Strategy, error) {
	opts, err := resolveOptions(cfg, verify)
	if err != nil {
		return nil, err
	}

	s := &Strategy{profileURL: ProfileURL}

	eng, err := engine.New(opts, verify, s)
	if err != nil {
		return nil, err
	}
	s.engine = eng

	return s, nil
}

// Name returns the provider identifier used by the registry.
func (s *Strategy) Name() string {
	return ProviderName
}

// Authenticate runs the authorization-code flow for one request.
func (s *Strategy) Authenticate(w http.ResponseWriter, r *http.Request, opts engine.AuthenticateOptions) engine.Result {
	return s.engine.Authenticate(w, r, opts)
}

// UserProfile fetches the authenticated user from the /me endpoint.
// Every call hits the network; nothing is cached.
func (s *Strategy) UserProfile(ctx context.Context, accessToken string) (*auth.Profile, error) {
	body, _, err := s.engine.Get(ctx, s.profileURL, accessToken)
	if err != nil {
		return nil, &engine.InternalOAuthError{
			Message: "failed to fetch user profile",
			Err:     err,
		}
	}

	data, err := decodeProfile(body)
	if err != nil {
		return nil, err
	}

	return &auth.Profile{
		Provider: ProviderName,
		ID:       field(data, "uid"),
		Name: auth.Name{
			FirstName: field(data, "first_name"),
			LastName:  field(data, "last_name"),
		},
		Username: field(data, "username"),
		Email:    field(data, "email"),
		Raw:      body,
		JSON:     data,
	}, nil
}

// decodeProfile parses the /me body. Numbers stay json.Number so large ids
// keep their digits. Arrays and scalars yield a nil map, which maps to an
// empty profile; null is rejected.
func decodeProfile(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errTrailingData
	}
	if v == nil {
		return nil, errNotObject
	}

	data, _ := v.(map[string]any)
	return data, nil
}

// ParseErrorResponse turns an Unsplash token error body into an error
// carrying the "error" value. Anything else is left to the engine.
func (s *Strategy) ParseErrorResponse(body []byte, status int) error {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil
	}

	if !truthy(data["error"]) {
		return nil
	}

	return &engine.TokenError{Code: field(data, "error"), Status: status}
}

// AuthorizationParams forwards "permissions" and "prompt" when present,
// even if empty. Other options are dropped.
func (s *Strategy) AuthorizationParams(params map[string]string) url.Values {
	out := url.Values{}
	for _, key := range authorizationParamKeys {
		if v, ok := params[key]; ok {
			out.Set(key, v)
		}
	}
	return out
}

// field reads a top-level value as a string. Missing and null values are "".
func field(data map[string]any, key string) string {
	switch v := data[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func truthy(v any) bool {
	switch v := v.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case float64:
		return v != 0
	case bool:
		return v
	default:
		return true
	}
}
