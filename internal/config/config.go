// Package config loads process configuration from the environment, after
// merging an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const devSecret = "dev_secret_change_me"

type Config struct {
	HTTPAddr       string        `env:"HTTP_ADDR" envDefault:":5175"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat      string        `env:"LOG_FORMAT" envDefault:"json"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"10s"`

	Store  string `env:"STORE" envDefault:"sqlite"`
	DBPath string `env:"DB_PATH" envDefault:"./data/globetrotter.db"`

	JWTSecret      string `env:"JWT_SECRET" envDefault:"dev_secret_change_me"`
	JWTExpiresDays int    `env:"JWT_EXPIRES_DAYS" envDefault:"7"`
	CookieName     string `env:"COOKIE_NAME" envDefault:"globetrotter_token"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	ClientOrigin   string `env:"CLIENT_ORIGIN" envDefault:"http://localhost:5173"`

	MaxWrongAnswers  int           `env:"MAX_WRONG_ANSWERS" envDefault:"3"`
	InviteTTL        time.Duration `env:"INVITE_TTL" envDefault:"168h"`
	InviteCodeLength int           `env:"INVITE_CODE_LENGTH" envDefault:"10"`
	InviteBaseURL    string        `env:"INVITE_BASE_URL"`

	RedisURL string `env:"REDIS_URL"`

	DailySalt        string `env:"DAILY_SALT" envDefault:"globetrotter"`
	SeedOnStart      bool   `env:"SEED_ON_START" envDefault:"true"`
	DestinationsFile string `env:"DESTINATIONS_FILE"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("STORE must be sqlite or memory, got %q", c.Store)
	}
	if c.JWTExpiresDays <= 0 {
		return fmt.Errorf("JWT_EXPIRES_DAYS must be positive, got %d", c.JWTExpiresDays)
	}
	if c.MaxWrongAnswers <= 0 {
		return fmt.Errorf("MAX_WRONG_ANSWERS must be positive, got %d", c.MaxWrongAnswers)
	}
	if c.InviteCodeLength < 6 || c.InviteCodeLength > 32 {
		return fmt.Errorf("INVITE_CODE_LENGTH must be between 6 and 32, got %d", c.InviteCodeLength)
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("INVITE_TTL must be positive, got %s", c.InviteTTL)
	}
	return nil
}

// TokenTTL is the lifetime of issued identity tokens.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiresDays) * 24 * time.Hour
}

// InsecureSecret reports whether the built-in development secret is in use.
func (c *Config) InsecureSecret() bool { return c.JWTSecret == devSecret }
