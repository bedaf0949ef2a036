package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/MrEthical07/dashAuth/guard"
	"github.com/MrEthical07/dashAuth/session"
)

// Routes names the surfaces guards redirect to.
type Routes struct {
	Login        string `split_words:"true" default:"/login"`
	Unauthorized string `split_words:"true" default:"/unauthorized"`
	// ReturnParam carries the originally requested URI to the login surface.
	ReturnParam  string `split_words:"true" default:"next"`
}

// DefaultRoutes returns the stock redirect targets.
func DefaultRoutes() Routes {
	return Routes{Login: "/login", Unauthorized: "/unauthorized", ReturnParam: "next"}
}

// Authorizer is the session surface a guard consults.
type Authorizer interface {
	Snapshot() session.Snapshot
	RefetchUser(ctx context.Context) error
	Evaluate(snap session.Snapshot, req guard.Requirement) guard.Decision
	Routes() Routes
	Logger() *slog.Logger
}

type snapshotContextKey struct{}

// SnapshotFromContext returns the snapshot an allowing guard attached to ctx.
func SnapshotFromContext(ctx context.Context) (session.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(session.Snapshot)
	return snap, ok
}

// Guard returns middleware enforcing req.
func Guard(a Authorizer, req guard.Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if a == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			snap := a.Snapshot()
			decision := a.Evaluate(snap, req)
			if decision == guard.Pending {
				if err := a.RefetchUser(r.Context()); err != nil {
					if l := a.Logger(); l != nil {
						l.DebugContext(r.Context(), "profile refetch failed", slog.Any("error", err))
					}
				}
				snap = a.Snapshot()
				decision = a.Evaluate(snap, req)
			}

			routes := a.Routes()
			switch decision {
			case guard.Allowed:
				ctx := context.WithValue(r.Context(), snapshotContextKey{}, snap)
				next.ServeHTTP(w, r.WithContext(ctx))
			case guard.DeniedUnauthenticated:
				http.Redirect(w, r, loginURL(routes, r.URL.RequestURI()), http.StatusFound)
			case guard.DeniedForbidden:
				http.Redirect(w, r, routes.Unauthorized, http.StatusFound)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
			}
		})
	}
}

func loginURL(routes Routes, requested string) string {
	u, err := url.Parse(routes.Login)
	if err != nil || routes.ReturnParam == "" {
		return routes.Login
	}
	q := u.Query()
	q.Set(routes.ReturnParam, requested)
	u.RawQuery = q.Encode()
	return u.String()
}
