package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dashAuth "github.com/MrEthical07/dashAuth"
	"github.com/MrEthical07/dashAuth/permission"
)

func TestParseArgs(t *testing.T) {
	cfg, cmd, rest, err := parseArgs([]string{"--json", "-u", "http://x/api", "check", "--level", "ADMIN"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !cfg.jsonOutput || cfg.baseURL != "http://x/api" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cmd != "check" || len(rest) != 2 {
		t.Fatalf("unexpected command %q %v", cmd, rest)
	}

	if _, _, _, err := parseArgs(nil); !errors.Is(err, errShowUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if _, _, _, err := parseArgs([]string{"--base-url"}); err == nil {
		t.Fatal("expected missing value error")
	}
	if _, _, _, err := parseArgs([]string{"--bogus", "status"}); err == nil {
		t.Fatal("expected unknown flag error")
	}
}

func TestParseRequirement(t *testing.T) {
	req, err := parseRequirement([]string{"--level", "regional", "--roles", "Admin, Manager,"})
	if err != nil {
		t.Fatalf("parseRequirement: %v", err)
	}
	if req.MinLevel != permission.LevelRegional {
		t.Fatalf("MinLevel = %v", req.MinLevel)
	}
	if len(req.Roles) != 2 || req.Roles[0] != "Admin" || req.Roles[1] != "Manager" {
		t.Fatalf("Roles = %v", req.Roles)
	}

	if _, err := parseRequirement([]string{"--level", "galactic"}); err == nil {
		t.Fatal("expected unknown level error")
	}
}

func TestRenderTableAlignsColouredCells(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []string{"A", "B"}, [][]string{{ansiGreen + "ok" + ansiReset, "1"}, {"long-cell", "2"}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d: %q", len(lines), buf.String())
	}
	if visibleLen(lines[2]) != visibleLen(lines[3]) {
		t.Fatalf("rows not aligned: %q vs %q", lines[2], lines[3])
	}
}

func TestRowsFromRecordsPutsIDFirst(t *testing.T) {
	headers, rows := RowsFromRecords([]map[string]any{
		{"name": "Plant 7", "id": "7"},
		{"id": "9", "city": "Lagos"},
	})
	want := []string{"ID", "CITY", "NAME"}
	if strings.Join(headers, ",") != strings.Join(want, ",") {
		t.Fatalf("headers = %v", headers)
	}
	if rows[0][1] != "-" || rows[1][2] != "-" {
		t.Fatalf("missing cells should render as dash: %v", rows)
	}
}

func TestReadPasswordFromEnv(t *testing.T) {
	t.Setenv("DASHCTL_PASSWORD", "from-env")
	pw, err := readPassword(strings.NewReader("ignored\n"))
	if err != nil || pw != "from-env" {
		t.Fatalf("readPassword = %q, %v", pw, err)
	}
}

func TestReadPasswordFromInput(t *testing.T) {
	t.Setenv("DASHCTL_PASSWORD", "")
	pw, err := readPassword(strings.NewReader("secret\r\n"))
	if err != nil || pw != "secret" {
		t.Fatalf("readPassword = %q, %v", pw, err)
	}
	if _, err := readPassword(strings.NewReader("")); err == nil {
		t.Fatal("expected empty password error")
	}
}

func TestPortalGuardsRoutes(t *testing.T) {
	cfg := dashAuth.DefaultConfig()
	client, err := dashAuth.New().WithConfig(cfg).WithMetricsEnabled(true).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer client.Close()
	if err := client.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	portal := newPortal(client)

	rec := httptest.NewRecorder()
	portal.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/data?x=1", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?next=%2Fdata%3Fx%3D1" {
		t.Fatalf("Location = %q", loc)
	}

	rec = httptest.NewRecorder()
	portal.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login?next=/data", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("login page status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	portal.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "dashauth_guard_denied_unauthenticated_total 1") {
		t.Fatalf("metrics missing guard denial:\n%s", rec.Body.String())
	}
}

func TestPortalSetsSecurityHeaders(t *testing.T) {
	client, err := dashAuth.New().Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer client.Close()

	rec := httptest.NewRecorder()
	newPortal(client).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
	if got := rec.Header().Get("Content-Security-Policy"); got != "default-src 'self'" {
		t.Fatalf("Content-Security-Policy = %q", got)
	}
}
