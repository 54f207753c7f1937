package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ErrInvalidConfig matches every *ConfigError.
var ErrInvalidConfig = errors.New("oauth2: invalid strategy configuration")

// ConfigError reports a missing or malformed construction option.
type ConfigError struct {
	Option string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("oauth2: %s option: %s", e.Option, e.Reason)
	}
	if e.Option == "verify" {
		return "oauth2: strategy requires a verify callback"
	}
	return fmt.Sprintf("oauth2: strategy requires a %s option", e.Option)
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// InternalOAuthError wraps a transport or protocol failure talking to the provider.
type InternalOAuthError struct {
	Message string
	Err     error
}

func (e *InternalOAuthError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *InternalOAuthError) Unwrap() error {
	return e.Err
}

// TokenError is an error reported by the token endpoint.
type TokenError struct {
	Code        string
	Description string
	URI         string
	Status      int
}

func (e *TokenError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// AuthorizationError is an error the provider sent back to the callback URL.
type AuthorizationError struct {
	Code        string
	Description string
	URI         string
}

func (e *AuthorizationError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return e.Code
}

// Status maps the RFC 6749 error code to an HTTP status.
func (e *AuthorizationError) Status() int {
	switch e.Code {
	case "access_denied":
		return http.StatusForbidden
	case "server_error":
		return http.StatusBadGateway
	case "temporarily_unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// HTTPError is returned by Get for non-2xx responses.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("oauth2: unexpected status %d", e.StatusCode)
}

// parseTokenError is the generic interpretation of a token endpoint error body.
func parseTokenError(body []byte, status int) error {
	var payload struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		ErrorURI         string `json:"error_uri"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	if payload.Error == "" {
		return nil
	}
	return &TokenError{
		Code:        payload.Error,
		Description: payload.ErrorDescription,
		URI:         payload.ErrorURI,
		Status:      status,
	}
}
