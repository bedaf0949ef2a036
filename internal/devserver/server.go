package devserver

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/unrolled/secure"

	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/token"
)

// Server is the development backend.
type Server struct {
	cfg      Config
	logger   *slog.Logger
	issuer   *token.Issuer
	dir      *directory
	revoked  *Revocations
	resolver *permission.Resolver
	validate *validator.Validate
	fixtures Fixtures
	router   chi.Router
}

// Option customizes a [Server].
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithFixtures replaces the canned search data.
func WithFixtures(f Fixtures) Option {
	return func(s *Server) { s.fixtures = f }
}

// New builds a Server over accounts. revocations is required.
func New(cfg Config, accounts []Account, revocations *Revocations, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if revocations == nil {
		return nil, errors.New("devserver: revocation store required")
	}

	s := &Server{
		cfg:      cfg,
		logger:   slog.New(slog.DiscardHandler),
		dir:      newDirectory(accounts),
		revoked:  revocations,
		resolver: permission.NewResolver(permission.DefaultTables()),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		fixtures: DefaultFixtures(),
	}
	for _, opt := range opts {
		opt(s)
	}

	secret := []byte(cfg.SigningSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("devserver: generate signing secret: %w", err)
		}
		s.logger.Warn("no signing secret configured, credentials will not survive a restart")
	}
	issuer, err := token.NewIssuer(token.IssuerConfig{
		TTL:           cfg.TokenTTL,
		SigningMethod: token.MethodHS256,
		PrivateKey:    secret,
		Issuer:        cfg.Issuer,
	})
	if err != nil {
		return nil, fmt.Errorf("devserver: %w", err)
	}
	s.issuer = issuer

	if s.fixtures == nil {
		s.fixtures = Fixtures{}
	}
	s.fixtures["users"] = s.userRows()
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	headers := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "no-referrer",
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, s.logRequests, headers.Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeResults(w, map[string]string{"status": "ok"})
	})

	base := s.cfg.BasePath
	if base == "" {
		base = "/"
	}
	r.Route(base, func(r chi.Router) {
		r.With(httprate.LimitByIP(s.cfg.LoginRateLimit, time.Minute)).Post("/users/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.requireCredential)
			r.Get("/users/me", s.handleMe)
			r.Post("/users/logout", s.handleLogout)
			r.With(s.requireLevel(permission.LevelRegional)).Post("/users/search", s.handleSearch("users"))
			r.Post("/factories/search", s.handleSearch("factories"))
			r.Post("/data/search", s.handleSearch("data"))
			r.With(s.requireLevel(permission.LevelAdmin)).Post("/users/{id}/revoke", s.handleRevokeUser)
		})
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Issuer exposes the credential issuer, for tests that need hand-made credentials.
func (s *Server) Issuer() *token.Issuer { return s.issuer }

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.LogAttrs(r.Context(), slog.LevelInfo, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

type principalKey struct{}

type principal struct {
	account *Account
	claims  *token.IssuedClaims
	level   permission.CanonicalLevel
}

func principalFrom(ctx context.Context) *principal {
	p, _ := ctx.Value(principalKey{}).(*principal)
	return p
}

func (s *Server) requireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing credential")
			return
		}
		claims, err := s.issuer.Verify(cred)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid credential")
			return
		}
		revoked, err := s.revoked.Revoked(r.Context(), claims.ID)
		if err != nil {
			s.logger.Error("revocation lookup failed", slog.Any("error", err))
			writeError(w, http.StatusServiceUnavailable, "revocation store unavailable")
			return
		}
		account, known := s.dir.byID[claims.Subject]
		if revoked || !known {
			writeForceLogout(w, "session revoked")
			return
		}

		p := &principal{
			account: account,
			claims:  claims,
			level:   s.resolver.Resolve(account.User.Subject()),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func (s *Server) requireLevel(min permission.CanonicalLevel) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := principalFrom(r.Context())
			if p == nil || !p.level.AtLeast(min) {
				writeError(w, http.StatusForbidden, "insufficient level")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	tok := strings.TrimSpace(value[len(bearer):])
	return tok, tok != ""
}

func (s *Server) userRows() []Row {
	users := s.dir.users()
	rows := make([]Row, 0, len(users))
	for _, u := range users {
		rows = append(rows, Row{
			"id":        string(u.ID),
			"name":      u.Name,
			"email":     u.Email,
			"role":      u.Role,
			"factoryId": string(u.FactoryID),
			"regionId":  string(u.RegionID),
		})
	}
	return rows
}
