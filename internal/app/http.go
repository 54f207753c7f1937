package app

import (
	"context"
	"net/http"

	"unsplash-auth/internal/auth"
	"unsplash-auth/internal/auth/engine"
	"unsplash-auth/internal/auth/handler"
	"unsplash-auth/internal/auth/provider"
	"unsplash-auth/internal/auth/provider/unsplash"
	"unsplash-auth/internal/auth/resolver"
	"unsplash-auth/internal/config"
	"unsplash-auth/internal/metrics"
	"unsplash-auth/internal/middleware"
	"unsplash-auth/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {
	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	sessionStore := session.NewRedisStore(infra.Redis.Client)
	identityResolver := resolver.NewDBResolver(infra.DB)
	m := metrics.New()

	unsplashStrategy, err := unsplash.New(
		unsplashConfig(cfg, stateStore(cfg, infra)),
		verifyWith(identityResolver),
	)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	registry, err := provider.NewRegistry(unsplashStrategy)
	if err != nil {
		_ = infra.Close()
		return nil, nil, err
	}

	authHandler := handler.NewHandler(
		registry,
		sessionStore,
		m,
		handler.Options{
			SessionTTL: cfg.SessionTTL,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(sessionStore, cfg.SessionTTL)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user_id": c.GetString(middleware.UserIDKey),
		})
	})

	return router, infra.Close, nil
}

func unsplashConfig(cfg config.Config, store engine.StateStore) unsplash.Config {
	return unsplash.Config{
		ClientID:          cfg.UnsplashClientID,
		ClientSecret:      cfg.UnsplashClientSecret,
		CallbackURL:       cfg.UnsplashCallbackURL,
		Scope:             cfg.UnsplashScope,
		PassReqToCallback: cfg.UnsplashPassReqToCallback,
		StateStore:        store,
		PKCE:              cfg.UnsplashPKCE,
		TrustProxy:        cfg.TrustProxy,
	}
}

func stateStore(cfg config.Config, infra *Infra) engine.StateStore {
	if cfg.OAuthStateStore == config.StateStoreRedis {
		return session.NewRedisStateStore(infra.Redis.Client, 0)
	}
	return engine.CookieStateStore{Secure: cfg.CookieSecure}
}

// verifyWith maps every verified profile to an internal user.
func verifyWith(r resolver.Resolver) engine.VerifyFunc {
	return func(
		ctx context.Context,
		_ *http.Request,
		_ string,
		_ string,
		profile *auth.Profile,
	) (string, error) {
		return r.Resolve(ctx, profile)
	}
}
