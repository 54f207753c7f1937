package engine

import (
	"context"
	"net/http"
)

// Get performs an authenticated GET, sending accessToken as a bearer token.
// Non-2xx responses return the body together with an *HTTPError.
func (e *Engine) Get(ctx context.Context, rawURL, accessToken string) ([]byte, *http.Response, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		Get(rawURL)
	if err != nil {
		return nil, nil, err
	}

	body := resp.Body()
	if !resp.IsSuccess() {
		return body, resp.RawResponse, &HTTPError{
			StatusCode: resp.StatusCode(),
			Body:       body,
		}
	}

	return body, resp.RawResponse, nil
}
