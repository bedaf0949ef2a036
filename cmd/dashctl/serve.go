package main

import (
	"context"
	"flag"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	dashAuth "github.com/MrEthical07/dashAuth"
	"github.com/MrEthical07/dashAuth/api"
	"github.com/MrEthical07/dashAuth/metrics/export/prometheus"
	"github.com/MrEthical07/dashAuth/middleware"
	"github.com/MrEthical07/dashAuth/permission"
)

func runServe(ctx context.Context, client *dashAuth.Client, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	addr := fs.String("addr", "127.0.0.1:9090", "listen address")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("usage: dashctl serve [--addr host:port]: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	server := &http.Server{
		Addr:              *addr,
		Handler:           newPortal(client),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("portal listening", slog.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<title>{{.Title}}</title>
<h1>{{.Title}}</h1>
{{with .User}}<p>{{.Name}} &middot; {{.Role}} &middot; {{$.Level}}</p>{{end}}
{{with .Body}}<p>{{.}}</p>{{end}}
{{range .Rows}}<pre>{{.}}</pre>{{end}}
`))

type page struct {
	Title string
	User  any
	Level string
	Body  string
	Rows  []string
}

// newPortal serves a small dashboard whose routes are gated by the session's level
// and role groups.
func newPortal(client *dashAuth.Client) http.Handler {
	routes := client.Routes()
	render := func(w http.ResponseWriter, status int, p page) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_ = pageTmpl.Execute(w, p)
	}

	headers := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		ReferrerPolicy:        "same-origin",
		ContentSecurityPolicy: "default-src 'self'",
	})

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.Recoverer, headers.Handler, httprate.LimitByIP(120, time.Minute))

	r.Handle("/metrics", prometheus.Handler(prometheus.NewCollector(client)))
	r.Get(routes.Login, func(w http.ResponseWriter, req *http.Request) {
		render(w, http.StatusOK, page{
			Title: "Sign in",
			Body:  "Run `dashctl login <email>` and reload " + req.URL.Query().Get(routes.ReturnParam),
		})
	})
	r.Get(routes.Unauthorized, func(w http.ResponseWriter, _ *http.Request) {
		render(w, http.StatusForbidden, page{Title: "Unauthorized", Body: "Your level does not grant access to this page."})
	})

	scoped := func(title, resource string) http.HandlerFunc {
		return func(w http.ResponseWriter, req *http.Request) {
			snap, _ := middleware.SnapshotFromContext(req.Context())
			p := page{Title: title, User: snap.User, Level: client.Level().String()}
			if resource != "" {
				var rows []map[string]any
				if err := client.API().Search(req.Context(), resource, nil, &rows); err != nil {
					if api.IsUnauthorized(err) {
						http.Redirect(w, req, routes.Login, http.StatusFound)
						return
					}
					render(w, http.StatusBadGateway, page{Title: title, Body: err.Error()})
					return
				}
				for _, row := range rows {
					p.Rows = append(p.Rows, fmt.Sprint(row))
				}
			}
			render(w, http.StatusOK, p)
		}
	}

	r.With(middleware.RequireLevel(client, permission.LevelFactory)).Get("/", scoped("Dashboard", ""))
	r.With(middleware.RequireLevel(client, permission.LevelFactory)).Get("/factories", scoped("Factories", api.ResourceFactories))
	r.With(middleware.RequireLevel(client, permission.LevelRegional)).Get("/data", scoped("Production data", api.ResourceData))
	r.With(middleware.RequireLevel(client, permission.LevelRegional), middleware.RequireRoles(client, "Regional", "National", "Admin")).
		Get("/users", scoped("Users", api.ResourceUsers))
	r.With(middleware.RequireRoles(client, "Admin")).Get("/admin", scoped("Administration", ""))
	return r
}
