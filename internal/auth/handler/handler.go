package handler

import (
	"errors"
	"net/http"
	"time"

	"unsplash-auth/internal/auth/engine"
	"unsplash-auth/internal/auth/provider"
	"unsplash-auth/internal/logger"
	"unsplash-auth/internal/metrics"
	"unsplash-auth/internal/session"

	"github.com/gin-gonic/gin"
)

type Options struct {
	SessionTTL time.Duration
}

type Handler struct {
	providers    *provider.Registry
	sessionStore session.Store
	metrics      *metrics.Metrics

	sessionTTL time.Duration
	cookie     session.CookieOptions
	now        func() time.Time
}

func NewHandler(
	registry *provider.Registry,
	sessionStore session.Store,
	m *metrics.Metrics,
	opts Options,
) *Handler {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}

	return &Handler{
		providers:    registry,
		sessionStore: sessionStore,
		metrics:      m,
		sessionTTL:   opts.SessionTTL,
		cookie: session.CookieOptions{
			SameSite: http.SameSiteLaxMode,
		},
		now: time.Now,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/oauth/login/:provider", h.login)
	r.GET("/oauth/callback/:provider", h.callback)
	r.POST("/auth/logout", h.Logout)
}

func (h *Handler) login(c *gin.Context) {
	h.authenticate(c, engine.AuthenticateOptions{
		Params: firstValues(c.Request.URL.Query()),
	})
}

func (h *Handler) callback(c *gin.Context) {
	h.authenticate(c, engine.AuthenticateOptions{})
}

func (h *Handler) authenticate(c *gin.Context, opts engine.AuthenticateOptions) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	res := p.Authenticate(c.Writer, c.Request, opts)
	h.metrics.Outcome(providerName, res.Outcome.String())

	switch res.Outcome {
	case engine.OutcomeRedirect:
		c.Redirect(http.StatusFound, res.RedirectURL)

	case engine.OutcomeSuccess:
		h.startSession(c, providerName, res.UserID)

	case engine.OutcomeFail:
		logger.Warn("oauth authentication failed", map[string]any{
			"provider": providerName,
			"message":  res.Message,
		})

		status := res.Status
		if status == 0 {
			status = http.StatusUnauthorized
		}
		c.JSON(status, gin.H{
			"error":   "authentication failed",
			"message": res.Message,
		})

	default:
		logger.Error("oauth authentication error", map[string]any{
			"provider": providerName,
			"error":    errString(res.Err),
		})

		c.JSON(errorStatus(res.Err), gin.H{
			"error": "authentication error",
		})
	}
}

func (h *Handler) startSession(c *gin.Context, providerName, userID string) {
	sessionID, err := session.GenerateID()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to create session",
		})
		return
	}

	now := h.now()
	sess := session.Session{
		SessionID: sessionID,
		UserID:    userID,
		Provider:  providerName,
		CreatedAt: now,
		ExpiresAt: now.Add(h.sessionTTL),
	}

	if err := h.sessionStore.Create(c.Request.Context(), sess); err != nil {
		logger.Error("session create failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to persist session",
		})
		return
	}

	session.SetCookie(c.Writer, sessionID, sess.ExpiresAt, h.cookie)
	h.metrics.Session("created")

	logger.Info("login success", map[string]any{
		"provider": providerName,
		"user_id":  userID,
		"ip":       c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{
		"status": "authenticated",
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if sessionID, ok := session.IDFromRequest(c.Request); ok {
		// best-effort; the cookie is cleared regardless
		if err := h.sessionStore.Delete(c.Request.Context(), sessionID); err != nil {
			logger.Warn("session delete failed", map[string]any{
				"error": err.Error(),
			})
		} else {
			h.metrics.Session("deleted")
		}
	}

	session.ClearCookie(c.Writer, h.cookie)

	c.Status(http.StatusNoContent)
}

// errorStatus picks the response status for an internal authentication error.
func errorStatus(err error) int {
	var withStatus interface{ Status() int }
	if errors.As(err, &withStatus) {
		return withStatus.Status()
	}
	return http.StatusBadGateway
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func firstValues(q map[string][]string) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, v := range q {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}
