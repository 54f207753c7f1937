package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"unsplash-auth/internal/logger"
	"unsplash-auth/internal/session"
)

// unexported, collision-proof context key
type userIDContextKeyType struct{}

var userIDKey = userIDContextKeyType{}

// UserIDFromContext extracts the authenticated user ID from context.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok
}

type AuthMiddleware struct {
	Store session.Store

	// ttl is the sliding lifetime. Sessions past half of it are extended.
	ttl time.Duration
	now func() time.Time
}

// NewAuthMiddleware returns a middleware that renews sessions by ttl. A
// non-positive ttl disables renewal.
func NewAuthMiddleware(store session.Store, ttl time.Duration) *AuthMiddleware {
	return &AuthMiddleware{Store: store, ttl: ttl, now: time.Now}
}

func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := session.IDFromRequest(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sess, err := a.Store.Get(r.Context(), sessionID)
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if err != nil {
			logger.Error("session lookup failed", map[string]any{
				"error": err.Error(),
			})
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}

		// redis TTL normally removes these first
		if sess.Expired(a.now()) {
			_ = a.Store.Delete(r.Context(), sessionID)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		a.renew(w, r, sess)

		ctx := context.WithValue(r.Context(), userIDKey, sess.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthMiddleware) renew(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	now := a.now()
	if a.ttl <= 0 || sess.ExpiresAt.Sub(now) > a.ttl/2 {
		return
	}

	renewed := *sess
	renewed.ExpiresAt = now.Add(a.ttl)

	// the current session stays valid when renewal fails
	if err := a.Store.Update(r.Context(), renewed); err != nil {
		logger.Warn("session renew failed", map[string]any{
			"error": err.Error(),
		})
		return
	}

	session.SetCookie(w, renewed.SessionID, renewed.ExpiresAt, session.CookieOptions{})
}
