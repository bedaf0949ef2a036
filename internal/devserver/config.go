package devserver

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config configures the development server.
type Config struct {
	Addr           string        `split_words:"true" default:":8080"`
	BasePath       string        `split_words:"true" default:"/api"`
	TokenTTL       time.Duration `split_words:"true" default:"1h"`
	SigningSecret  string        `split_words:"true"`
	Issuer         string        `split_words:"true" default:"dashdev"`
	LoginRateLimit int           `split_words:"true" default:"10"`
	// IncludeUserInLogin controls whether the login response embeds the profile.
	IncludeUserInLogin bool   `split_words:"true" default:"true"`
	RedisAddr          string `split_words:"true"`
	RedisPrefix        string `split_words:"true" default:"dashdev"`
	SeedPassword       string `split_words:"true" default:"dashboard"`
	LogFormat          string `split_words:"true" default:"text"`
}

// DefaultConfig returns the stock development configuration.
func DefaultConfig() Config {
	return Config{
		Addr:               ":8080",
		BasePath:           "/api",
		TokenTTL:           time.Hour,
		Issuer:             "dashdev",
		LoginRateLimit:     10,
		IncludeUserInLogin: true,
		RedisPrefix:        "dashdev",
		SeedPassword:       "dashboard",
		LogFormat:          "text",
	}
}

// LoadConfigFromEnv reads DASHDEV_* variables.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process("DASHDEV", &cfg); err != nil {
		return Config{}, fmt.Errorf("devserver config: %w", err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be > 0"))
	}
	if c.LoginRateLimit <= 0 {
		errs = append(errs, errors.New("login rate limit must be > 0"))
	}
	if c.BasePath != "" && c.BasePath[0] != '/' {
		errs = append(errs, fmt.Errorf("base path %q must start with /", c.BasePath))
	}
	return errors.Join(errs...)
}
