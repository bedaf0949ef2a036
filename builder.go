package dashAuth

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/dashAuth/api"
	"github.com/MrEthical07/dashAuth/guard"
	"github.com/MrEthical07/dashAuth/internal/audit"
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
	"github.com/MrEthical07/dashAuth/storage"
	"github.com/MrEthical07/dashAuth/token"
)

// Builder assembles a [Client]. A Builder is single-use.
type Builder struct {
	config     Config
	storage    session.Storage
	redis      redis.UniversalClient
	httpClient *http.Client
	navigator  session.Navigator
	logger     *slog.Logger
	auditSink  AuditSink
	clock      func() time.Time

	built bool
}

// New starts a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStorage sets the persistence backend, overriding Config.Storage.
func (b *Builder) WithStorage(s session.Storage) *Builder {
	b.storage = s
	return b
}

// WithRedis supplies the client used when Config.Storage.Kind is redis. The caller
// keeps ownership of client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the HTTP client the API calls go through. Its transport is
// wrapped by the credential interceptor.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithNavigator sets the post-logout navigation.
func (b *Builder) WithNavigator(n session.Navigator) *Builder {
	b.navigator = n
	return b
}

func (b *Builder) WithLogger(l *slog.Logger) *Builder {
	b.logger = l
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock overrides the time source used for credential expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires storage, session store, API client and
// guard together.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	c := &Client{
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		audit:   audit.NewDispatcher(cfg.Audit, b.auditSink),
	}

	st, owned, err := b.buildStorage(cfg.Storage)
	if err != nil {
		c.audit.Close()
		return nil, err
	}
	c.owned = owned

	var validatorOpts []token.Option
	if b.clock != nil {
		validatorOpts = append(validatorOpts, token.WithClock(b.clock))
	}
	tokens := token.NewValidator(validatorOpts...)

	c.store = session.NewStore(st, session.Options{
		Validator: tokens,
		Navigator: b.navigator,
		Logger:    logger.With(slog.String("component", "session")),
		Hooks:     c.sessionHooks(),
	})

	apiOpts := []api.Option{
		api.WithValidator(tokens),
		api.WithLogger(logger.With(slog.String("component", "api"))),
		api.WithHooks(c.apiHooks()),
	}
	if b.httpClient != nil {
		apiOpts = append(apiOpts, api.WithHTTPClient(b.httpClient))
	}
	c.api, err = api.New(api.Config{
		BaseURL:         cfg.API.BaseURL,
		Timeout:         cfg.API.Timeout,
		MaxInspectBytes: cfg.API.MaxInspectBytes,
		UserAgent:       cfg.API.UserAgent,
	}, c.store, apiOpts...)
	if err != nil {
		c.closeResources()
		return nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
	}
	c.store.AttachBackend(c.api)

	c.guard = guard.New(permission.NewResolver(cfg.Levels.Tables()), cfg.RoleGroups)

	b.built = true
	return c, nil
}

func (b *Builder) buildStorage(cfg StorageConfig) (session.Storage, io.Closer, error) {
	if b.storage != nil {
		return b.storage, nil, nil
	}

	switch cfg.Kind {
	case StorageFile:
		f, err := storage.NewFile(cfg.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrConfigInvalid, err)
		}
		return f, nil, nil
	case StorageRedis:
		if b.redis != nil {
			return storage.NewRedis(b.redis, cfg.RedisPrefix, cfg.Namespace), nil, nil
		}
		if cfg.RedisAddr == "" {
			return nil, nil, ErrRedisRequired
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return storage.NewRedis(rdb, cfg.RedisPrefix, cfg.Namespace), rdb, nil
	default:
		return storage.NewMemory(), nil, nil
	}
}
