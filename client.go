package dashAuth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/dashAuth/api"
	"github.com/MrEthical07/dashAuth/guard"
	"github.com/MrEthical07/dashAuth/internal/audit"
	"github.com/MrEthical07/dashAuth/middleware"
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
)

// Client is the session facade: one authenticated dashboard session, its API client
// and its access guard.
//
// Client is safe for concurrent use.
type Client struct {
	config  Config
	store   *session.Store
	api     *api.Client
	guard   *guard.Guard
	metrics *Metrics
	audit   *audit.Dispatcher
	logger  *slog.Logger
	owned   io.Closer
	closed  atomic.Bool
}

var _ middleware.Authorizer = (*Client)(nil)

// Initialize restores the session from storage. Call it once before use.
func (c *Client) Initialize(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.store.Initialize(ctx)
}

// Login adopts an externally obtained credential. user may be nil; the profile is
// then fetched on first use.
func (c *Client) Login(ctx context.Context, credential string, user *session.UserRecord) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return c.store.Login(ctx, credential, user)
}

// LoginWithPassword exchanges a password for a credential and starts a session.
//
// LoginWithPassword returns [ErrSessionFetchFailed] when the backend did not include
// the profile and fetching it failed.
func (c *Client) LoginWithPassword(ctx context.Context, email, password string) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	credential, user, err := c.api.LoginPassword(ctx, email, password)
	if err != nil {
		c.metrics.Inc(MetricLoginRejected)
		c.emit(ctx, AuditEvent{Type: AuditLoginRejected, Reason: reason(err)})
		return err
	}
	if err := c.store.Login(ctx, credential, user); err != nil {
		return err
	}
	if user == nil {
		return c.store.RefetchUser(ctx)
	}
	return nil
}

// Logout ends the session. It is idempotent.
func (c *Client) Logout(ctx context.Context) error {
	return c.store.Logout(ctx)
}

// RefetchUser loads the profile when the session has none. Concurrent callers share
// one request.
func (c *Client) RefetchUser(ctx context.Context) error {
	return c.store.RefetchUser(ctx)
}

// OnInvalidated subscribes fn to session invalidation. The session has already been
// reset when fn runs.
func (c *Client) OnInvalidated(fn func(ctx context.Context)) (unsubscribe func()) {
	return c.store.OnInvalidated(fn)
}

func (c *Client) Snapshot() session.Snapshot {
	return c.store.Snapshot()
}

// Evaluate runs the guard over snap and records the decision.
func (c *Client) Evaluate(snap session.Snapshot, req guard.Requirement) guard.Decision {
	d := c.guard.Evaluate(snap, req)
	switch d {
	case guard.Allowed:
		c.metrics.Inc(MetricGuardAllowed)
	case guard.Pending:
		c.metrics.Inc(MetricGuardPending)
	case guard.DeniedUnauthenticated:
		c.metrics.Inc(MetricGuardDeniedUnauthenticated)
	case guard.DeniedForbidden:
		c.metrics.Inc(MetricGuardDeniedForbidden)
		ev := AuditEvent{
			Type:     AuditAccessDenied,
			Level:    c.guard.Level(snap.User).String(),
			Metadata: map[string]string{"required_level": req.MinLevel.String()},
		}
		if snap.User != nil {
			ev.UserID = string(snap.User.ID)
			ev.Role = snap.User.Role
		}
		c.emit(context.Background(), ev)
	}
	return d
}

// Authorize evaluates req against the current session, resolving a pending profile
// first. It never returns [guard.Pending] unless the profile could not be loaded
// without ending the session.
func (c *Client) Authorize(ctx context.Context, req guard.Requirement) guard.Decision {
	d := c.Evaluate(c.Snapshot(), req)
	if d != guard.Pending {
		return d
	}
	if err := c.store.RefetchUser(ctx); err != nil {
		c.logger.DebugContext(ctx, "authorize refetch failed", slog.Any("error", err))
	}
	return c.Evaluate(c.Snapshot(), req)
}

// Level returns the canonical level of the current user.
func (c *Client) Level() permission.CanonicalLevel {
	return c.guard.Level(c.Snapshot().User)
}

// Routes returns the configured redirect targets.
func (c *Client) Routes() middleware.Routes {
	return c.config.Routes
}

// Logger returns the logger the client was built with.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// API returns the REST client bound to this session.
func (c *Client) API() *api.Client {
	return c.api
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() Config {
	return cloneConfig(c.config)
}

func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// AuditDropped reports events discarded because the audit buffer was full.
func (c *Client) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close stops storage watching, flushes audit events and releases owned connections.
// The session itself is left intact in storage.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.store.Close()
	c.closeResources()
}

func (c *Client) closeResources() {
	c.audit.Close()
	if c.owned != nil {
		if err := c.owned.Close(); err != nil {
			c.logger.Warn("closing storage connection failed", slog.Any("error", err))
		}
	}
}

func (c *Client) sessionHooks() session.Hooks {
	return session.Hooks{
		Login: func(user *session.UserRecord) {
			c.metrics.Inc(MetricLoginSuccess)
			ev := AuditEvent{Type: AuditLogin, Success: true}
			if user != nil {
				ev.UserID = string(user.ID)
				ev.Role = user.Role
				ev.Level = c.guard.Level(user).String()
			}
			c.emit(context.Background(), ev)
			c.logger.Info("session started", slog.String("user_id", ev.UserID))
		},
		LoginRejected: func() {
			c.metrics.Inc(MetricLoginRejected)
			c.emit(context.Background(), AuditEvent{Type: AuditLoginRejected, Reason: "invalid credential"})
		},
		Logout: func(hadSession bool) {
			if !hadSession {
				return
			}
			c.metrics.Inc(MetricLogout)
			c.emit(context.Background(), AuditEvent{Type: AuditLogout, Success: true})
			c.logger.Info("session ended")
		},
		Restored: func(authenticated bool) {
			if authenticated {
				c.metrics.Inc(MetricSessionRestored)
				c.emit(context.Background(), AuditEvent{Type: AuditRestored, Success: true})
				return
			}
			c.metrics.Inc(MetricSessionRestoreEmpty)
		},
		CredentialPurged: func() {
			c.metrics.Inc(MetricCredentialPurged)
			c.emit(context.Background(), AuditEvent{Type: AuditCredentialPurged, Success: true})
		},
		Invalidated: func() {
			c.metrics.Inc(MetricSessionInvalidated)
			c.emit(context.Background(), AuditEvent{Type: AuditInvalidated, Success: true})
		},
		Refetch: func(err error) {
			if err == nil {
				c.metrics.Inc(MetricRefetchSuccess)
				return
			}
			c.metrics.Inc(MetricRefetchFailure)
			c.emit(context.Background(), AuditEvent{Type: AuditRefetchFailed, Reason: reason(err)})
		},
	}
}

func (c *Client) apiHooks() api.Hooks {
	return api.Hooks{
		CredentialAttached: func() { c.metrics.Inc(MetricCredentialAttached) },
		ForcedLogout: func(status int) {
			c.metrics.Inc(MetricForcedLogout)
			c.logger.Info("backend ended the session", slog.Int("status", status))
		},
		RequestDone: func(d time.Duration, status int, err error) {
			c.metrics.Observe(MetricRequestLatency, d)
			if err != nil || status >= http.StatusInternalServerError {
				c.metrics.Inc(MetricRequestFailure)
			}
		},
	}
}

func (c *Client) emit(ctx context.Context, ev AuditEvent) {
	c.audit.Emit(ctx, ev)
}

func reason(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return "api status " + strconv.Itoa(apiErr.StatusCode)
	}
	return err.Error()
}
