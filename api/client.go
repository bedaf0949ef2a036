package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/MrEthical07/dashAuth/session"
	"github.com/MrEthical07/dashAuth/token"
)

// Search resources exposed by the backend.
const (
	ResourceUsers     = "users"
	ResourceFactories = "factories"
	ResourceData      = "data"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxBodyBytes = 8 << 20
	defaultUserAgent    = "dashAuth"
)

// Config configures a [Client].
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	MaxInspectBytes int64
	MaxBodyBytes    int64
	UserAgent       string
}

// Option customizes a [Client].
type Option func(*Client)

// WithHTTPClient sets the underlying client. Its transport is wrapped, not replaced.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.base = hc }
}

// WithValidator sets the credential validator used by the interceptor.
func WithValidator(v *token.Validator) Option {
	return func(c *Client) { c.tokens = v }
}

// WithHooks sets interceptor hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// Client talks to the dashboard REST API. Requests are bound to the session lifetime:
// logout cancels everything in flight.
type Client struct {
	baseURL  *url.URL
	cfg      Config
	source   CredentialSource
	base     *http.Client
	http     *http.Client
	tokens   *token.Validator
	hooks    Hooks
	logger   *slog.Logger
	validate *validator.Validate
}

// New builds a Client. source may be nil for unauthenticated tooling.
func New(cfg Config, source CredentialSource, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("api: base URL is required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base URL must be http or https, got %q", u.Scheme)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	c := &Client{
		baseURL:  u,
		cfg:      cfg,
		source:   source,
		logger:   slog.New(slog.DiscardHandler),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokens == nil {
		c.tokens = token.NewValidator()
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if c.base != nil {
		cp := *c.base
		hc = &cp
		if hc.Timeout == 0 {
			hc.Timeout = cfg.Timeout
		}
	}
	hc.Transport = &Interceptor{
		Next:            hc.Transport,
		Source:          source,
		Validator:       c.tokens,
		Hooks:           c.hooks,
		MaxInspectBytes: cfg.MaxInspectBytes,
		Logger:          c.logger,
	}
	c.http = hc
	return c, nil
}

// BaseURL returns the normalized base URL.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// Do sends a JSON request to path (relative to the base URL) and decodes the
// response, unwrapping an envelope if present, into out. in and out may be nil.
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	ctx, release := c.bind(ctx)
	defer release()

	rel, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return fmt.Errorf("%w: path %q: %v", ErrInvalidRequest, path, err)
	}
	target := c.baseURL.ResolveReference(rel)

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode body: %v", ErrInvalidRequest, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}
	return decodeResponse(resp.StatusCode, data, out)
}

// bind derives a request context that is also cancelled when the session lifetime
// ends.
func (c *Client) bind(ctx context.Context) (context.Context, func()) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	if c.source == nil {
		return ctx, cancel
	}
	stop := context.AfterFunc(c.source.Lifetime(), cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func decodeResponse(status int, data []byte, out any) error {
	env, isEnvelope := parseEnvelope(data)

	if status < 200 || status > 299 {
		apiErr := &APIError{StatusCode: status}
		if isEnvelope {
			apiErr.Message = env.Message
			apiErr.ForceLogout = env.ForceLogout()
		}
		return apiErr
	}

	if isEnvelope {
		if !env.Success {
			return &APIError{StatusCode: status, Message: env.Message, ForceLogout: env.ForceLogout()}
		}
		data = env.Results
	}
	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return fmt.Errorf("%w: empty results", ErrMalformedResponse)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// Me fetches the current user profile.
func (c *Client) Me(ctx context.Context) (*session.UserRecord, error) {
	var user session.UserRecord
	if err := c.Do(ctx, http.MethodGet, "users/me", nil, &user); err != nil {
		return nil, err
	}
	if err := c.validate.Struct(user); err != nil {
		return nil, fmt.Errorf("%w: user record: %v", ErrMalformedResponse, err)
	}
	return &user, nil
}

// LogoutRemote notifies the backend that credential is being discarded. The request
// carries credential explicitly and bypasses the interceptor.
func (c *Client) LogoutRemote(ctx context.Context, credential string) error {
	if credential == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(withoutInterception(ctx), c.cfg.Timeout)
	defer cancel()

	target := c.baseURL.ResolveReference(&url.URL{Path: "users/logout"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return fmt.Errorf("api: read response: %w", err)
	}
	return decodeResponse(resp.StatusCode, data, nil)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string               `json:"token" validate:"required"`
	User  *session.UserRecord `json:"user" validate:"omitnil"`
}

// LoginPassword exchanges a password for a credential. user is nil when the backend
// does not include the profile in the login response.
func (c *Client) LoginPassword(ctx context.Context, email, password string) (credential string, user *session.UserRecord, err error) {
	in := loginRequest{Email: strings.TrimSpace(email), Password: password}
	if err := c.validate.Struct(in); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	var out loginResponse
	if err := c.Do(withoutInterception(ctx), http.MethodPost, "users/login", in, &out); err != nil {
		return "", nil, err
	}
	if err := c.validate.Struct(out); err != nil {
		return "", nil, fmt.Errorf("%w: login response: %v", ErrMalformedResponse, err)
	}
	if !c.tokens.IsValid(out.Token) {
		return "", nil, fmt.Errorf("%w: login returned an unusable credential", ErrMalformedResponse)
	}
	return out.Token, out.User, nil
}

// Search posts query to the resource's search endpoint and decodes the results into
// out.
func (c *Client) Search(ctx context.Context, resource string, query, out any) error {
	switch resource {
	case ResourceUsers, ResourceFactories, ResourceData:
	default:
		return fmt.Errorf("%w: unknown search resource %q", ErrInvalidRequest, resource)
	}
	if query == nil {
		query = struct{}{}
	}
	return c.Do(ctx, http.MethodPost, resource+"/search", query, out)
}

// IsCanceled reports whether err came from a request discarded by logout or by its
// caller.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
