package dashAuth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/MrEthical07/dashAuth/internal/audit"
	"github.com/MrEthical07/dashAuth/middleware"
	"github.com/MrEthical07/dashAuth/permission"
)

// EnvPrefix prefixes every environment variable read by [LoadConfigFromEnv].
const EnvPrefix = "DASH"

// Config is the complete client configuration. Build it with [DefaultConfig] or
// [LoadConfigFromEnv], adjust it, then pass it to [Builder.WithConfig].
type Config struct {
	API        APIConfig
	Storage    StorageConfig
	Routes     middleware.Routes
	Levels     LevelsConfig
	RoleGroups permission.RoleGroups `ignored:"true"`
	Audit      AuditConfig
	Metrics    MetricsConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig points the client at the dashboard REST API.
type APIConfig struct {
	BaseURL         string        `split_words:"true" default:"http://localhost:8080/api"`
	Timeout         time.Duration `split_words:"true" default:"15s"`
	MaxInspectBytes int64         `split_words:"true" default:"1048576"`
	UserAgent       string        `split_words:"true" default:"dashAuth"`
}

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageKind selects the persistence backend.
type StorageKind string

const (
	StorageMemory StorageKind = "memory"
	StorageFile   StorageKind = "file"
	StorageRedis  StorageKind = "redis"
)

// StorageConfig selects where the credential and user record persist.
type StorageConfig struct {
	Kind        StorageKind `split_words:"true" default:"memory"`
	Path        string      `split_words:"true"`
	RedisAddr   string      `split_words:"true"`
	RedisPrefix string      `split_words:"true" default:"dash"`
	Namespace   string      `split_words:"true" default:"default"`
}

/*
====================================
LEVEL RESOLUTION CONFIG
====================================
*/

// LevelsConfig overrides the level resolver tables. A non-empty map replaces the
// corresponding default table entirely.
type LevelsConfig struct {
	RoleLevels map[string]string `split_words:"true"`
	Aliases    map[string]string `split_words:"true"`
	Ordinals   map[string]string `split_words:"true"`
}

// Tables merges the overrides over [permission.DefaultTables].
func (l LevelsConfig) Tables() permission.Tables {
	t := permission.DefaultTables()
	if len(l.RoleLevels) > 0 {
		t.RoleLevels = l.RoleLevels
	}
	if len(l.Aliases) > 0 {
		t.Aliases = l.Aliases
	}
	if len(l.Ordinals) > 0 {
		t.Ordinals = l.Ordinals
	}
	return t
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig = audit.Config

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool `split_words:"true" default:"false"`
	EnableLatencyHistograms bool `split_words:"true" default:"false"`
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:         "http://localhost:8080/api",
			Timeout:         15 * time.Second,
			MaxInspectBytes: 1 << 20,
			UserAgent:       "dashAuth",
		},
		Storage: StorageConfig{
			Kind:        StorageMemory,
			RedisPrefix: "dash",
			Namespace:   "default",
		},
		Routes:     middleware.DefaultRoutes(),
		RoleGroups: permission.DefaultRoleGroups(),
		Audit: AuditConfig{
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// LoadConfigFromEnv reads DASH_* variables over [DefaultConfig]. Role groups are not
// read from the environment.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	return cfg, nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.RoleGroups = cfg.RoleGroups.Clone()
	out.Levels.RoleLevels = cloneMap(cfg.Levels.RoleLevels)
	out.Levels.Aliases = cloneMap(cfg.Levels.Aliases)
	out.Levels.Ordinals = cloneMap(cfg.Levels.Ordinals)
	return out
}

func cloneMap(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrConfigInvalid)
	}

	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		add("api.base_url must be an absolute http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		add("api.timeout must be > 0")
	}
	if c.API.MaxInspectBytes < 0 {
		add("api.max_inspect_bytes must be >= 0")
	}

	switch c.Storage.Kind {
	case StorageMemory, StorageRedis:
	case StorageFile:
		if strings.TrimSpace(c.Storage.Path) == "" {
			add("storage.path is required for file storage")
		}
	default:
		add("storage.kind %q is not one of memory, file, redis", c.Storage.Kind)
	}

	if !strings.HasPrefix(c.Routes.Login, "/") {
		add("routes.login must be an absolute path, got %q", c.Routes.Login)
	}
	if !strings.HasPrefix(c.Routes.Unauthorized, "/") {
		add("routes.unauthorized must be an absolute path, got %q", c.Routes.Unauthorized)
	}

	for _, table := range []struct {
		name string
		m    map[string]string
	}{
		{"levels.role_levels", c.Levels.RoleLevels},
		{"levels.aliases", c.Levels.Aliases},
		{"levels.ordinals", c.Levels.Ordinals},
	} {
		for k, v := range table.m {
			if _, ok := permission.ParseCanonicalLevel(v); !ok {
				add("%s[%q] = %q is not a canonical level", table.name, k, v)
			}
		}
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		add("audit.buffer_size must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		add("metrics.latency_histograms requires metrics.enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, errors.Join(errs...))
	}
	return nil
}
