package web

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the dashboard configuration. The dashboard is optional;
// when disabled none of the OAuth settings are required.
type Config struct {
	Enabled    bool   `env:"WEB_ENABLED" envDefault:"false"`
	ListenAddr string `env:"WEB_LISTEN_ADDR" envDefault:":8080"`

	// Discord OAuth application credentials.
	OAuthClientID     string `env:"WEB_OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"WEB_OAUTH_CLIENT_SECRET"`
	OAuthRedirectURL  string `env:"WEB_OAUTH_REDIRECT_URL"`

	// Guild and role a user must hold to operate the dashboard.
	AuthGuildID    string `env:"WEB_AUTH_GUILD_ID"`
	RequiredRoleID string `env:"WEB_REQUIRED_ROLE_ID"`

	SessionTTL time.Duration `env:"WEB_SESSION_TTL" envDefault:"24h"`

	// Per-client request budget for the API routes.
	RateLimit float64 `env:"WEB_RATE_LIMIT" envDefault:"10"`
	RateBurst int     `env:"WEB_RATE_BURST" envDefault:"20"`
}

// LoadConfig loads the dashboard configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if !cfg.Enabled {
		return cfg, nil
	}

	if cfg.OAuthClientID == "" || cfg.OAuthClientSecret == "" || cfg.OAuthRedirectURL == "" {
		return nil, errors.New("WEB_OAUTH_CLIENT_ID, WEB_OAUTH_CLIENT_SECRET, and WEB_OAUTH_REDIRECT_URL are required when the dashboard is enabled")
	}
	if cfg.AuthGuildID == "" || cfg.RequiredRoleID == "" {
		return nil, errors.New("WEB_AUTH_GUILD_ID and WEB_REQUIRED_ROLE_ID are required when the dashboard is enabled")
	}
	return cfg, nil
}
