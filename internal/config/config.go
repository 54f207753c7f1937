package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	StateStoreCookie = "cookie"
	StateStoreRedis  = "redis"
)

type Config struct {
	AppPort  string `env:"APP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	UnsplashClientID          string   `env:"UNSPLASH_CLIENT_ID"`
	UnsplashClientSecret      string   `env:"UNSPLASH_CLIENT_SECRET"`
	UnsplashCallbackURL       string   `env:"UNSPLASH_CALLBACK_URL"`
	UnsplashScope             []string `env:"UNSPLASH_SCOPE" envSeparator:"," envDefault:"public"`
	UnsplashPassReqToCallback bool     `env:"UNSPLASH_PASS_REQ_TO_CALLBACK" envDefault:"false"`
	UnsplashPKCE              bool     `env:"UNSPLASH_PKCE" envDefault:"false"`

	// TrustProxy honours X-Forwarded-Proto when the callback URL is relative.
	TrustProxy bool `env:"TRUST_PROXY" envDefault:"false"`

	// OAuthStateStore selects where the authorization state lives: "cookie" or "redis".
	OAuthStateStore string `env:"OAUTH_STATE_STORE" envDefault:"cookie"`

	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	DatabaseDSN string `env:"DATABASE_DSN"`

	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`

	// CookieSecure applies to the OAuth state cookies. The session cookie
	// uses the __Host- prefix and is always Secure.
	CookieSecure bool `env:"COOKIE_SECURE" envDefault:"true"`
}

func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	switch cfg.OAuthStateStore {
	case StateStoreCookie, StateStoreRedis:
	default:
		return Config{}, fmt.Errorf("config: unknown OAUTH_STATE_STORE %q", cfg.OAuthStateStore)
	}

	if cfg.SessionTTL <= 0 {
		return Config{}, fmt.Errorf("config: SESSION_TTL must be positive")
	}

	return cfg, nil
}
