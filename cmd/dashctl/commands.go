package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	dashAuth "github.com/MrEthical07/dashAuth"
	"github.com/MrEthical07/dashAuth/guard"
	"github.com/MrEthical07/dashAuth/permission"
	"github.com/MrEthical07/dashAuth/session"
	"github.com/MrEthical07/dashAuth/token"
)

func runLogin(ctx context.Context, client *dashAuth.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dashctl login <email>")
	}
	password, err := readPassword(os.Stdin)
	if err != nil {
		return err
	}
	if err := client.LoginWithPassword(ctx, args[0], password); err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	snap := client.Snapshot()
	fmt.Printf("Signed in as %s (%s)\n", displayName(snap), client.Level())
	return nil
}

func readPassword(in io.Reader) (string, error) {
	if pw := os.Getenv("DASHCTL_PASSWORD"); pw != "" {
		return pw, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("password required")
	}
	return line, nil
}

func runLogout(ctx context.Context, client *dashAuth.Client) error {
	if err := client.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Signed out")
	return nil
}

func runWhoami(ctx context.Context, client *dashAuth.Client, cfg cliConfig) error {
	if !client.Snapshot().Authenticated {
		return errors.New("not signed in")
	}
	if err := client.RefetchUser(ctx); err != nil {
		return err
	}
	snap := client.Snapshot()
	if snap.User == nil {
		return errors.New("profile unavailable")
	}
	if cfg.jsonOutput {
		return PrintJSON(os.Stdout, snap.User)
	}

	u := snap.User
	fmt.Printf("ID: %s\n", u.ID)
	fmt.Printf("Name: %s\n", orDash(u.Name))
	fmt.Printf("Email: %s\n", orDash(u.Email))
	fmt.Printf("Role: %s\n", orDash(u.Role))
	fmt.Printf("Level: %s (raw %s)\n", client.Level(), orDash(u.Level.String()))
	fmt.Printf("Factory: %s\n", orDash(string(u.FactoryID)))
	fmt.Printf("Region: %s\n", orDash(string(u.RegionID)))
	return nil
}

func runStatus(client *dashAuth.Client, cfg cliConfig) error {
	snap := client.Snapshot()
	status := struct {
		BaseURL       string `json:"base_url"`
		Authenticated bool   `json:"authenticated"`
		ProfileLoaded bool   `json:"profile_loaded"`
		User          string `json:"user,omitempty"`
		Level         string `json:"level"`
		ExpiresAt     string `json:"expires_at,omitempty"`
	}{
		BaseURL:       client.API().BaseURL(),
		Authenticated: snap.Authenticated,
		ProfileLoaded: snap.User != nil,
		Level:         client.Level().String(),
	}
	if snap.User != nil {
		status.User = displayName(snap)
	}
	if exp, ok := token.NewValidator().ExpiresAt(snap.Credential); ok {
		status.ExpiresAt = exp.Local().Format("2006-01-02 15:04:05")
	}
	if cfg.jsonOutput {
		return PrintJSON(os.Stdout, status)
	}

	RenderTable(os.Stdout, []string{"FIELD", "VALUE"}, [][]string{
		{"base_url", status.BaseURL},
		{"authenticated", fmt.Sprint(status.Authenticated)},
		{"profile_loaded", fmt.Sprint(status.ProfileLoaded)},
		{"user", orDash(status.User)},
		{"level", status.Level},
		{"expires_at", orDash(status.ExpiresAt)},
	})
	return nil
}

func runCheck(ctx context.Context, client *dashAuth.Client, args []string) error {
	req, err := parseRequirement(args)
	if err != nil {
		return err
	}
	decision := client.Authorize(ctx, req)
	fmt.Println(ColorDecision(decision))
	if decision != guard.Allowed {
		return fmt.Errorf("requirement not met: %s", decision)
	}
	return nil
}

func parseRequirement(args []string) (guard.Requirement, error) {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	level := fs.String("level", "", "minimum level (FACTORY, REGIONAL, NATIONAL, ADMIN)")
	roles := fs.String("roles", "", "comma-separated role labels")
	if err := fs.Parse(args); err != nil {
		return guard.Requirement{}, fmt.Errorf("usage: dashctl check [--level L] [--roles a,b]: %w", err)
	}

	var req guard.Requirement
	if *level != "" {
		lvl, ok := permission.ParseCanonicalLevel(*level)
		if !ok {
			return guard.Requirement{}, fmt.Errorf("unknown level %q", *level)
		}
		req.MinLevel = lvl
	}
	for _, r := range strings.Split(*roles, ",") {
		if r = strings.TrimSpace(r); r != "" {
			req.Roles = append(req.Roles, r)
		}
	}
	return req, nil
}

func runSearch(ctx context.Context, client *dashAuth.Client, cfg cliConfig, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return fmt.Errorf("usage: dashctl search <users|factories|data> [query]")
	}
	query := map[string]any{}
	if len(args) == 2 {
		query["q"] = args[1]
	}

	var records []map[string]any
	if err := client.API().Search(ctx, args[0], query, &records); err != nil {
		return err
	}
	if cfg.jsonOutput {
		return PrintJSON(os.Stdout, records)
	}
	headers, rows := RowsFromRecords(records)
	if len(headers) > 0 {
		RenderTable(os.Stdout, headers, rows)
	}
	fmt.Fprintf(os.Stdout, "\nTotal: %d %s\n", len(records), args[0])
	return nil
}

func runGet(ctx context.Context, client *dashAuth.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: dashctl get <path>")
	}
	var out json.RawMessage
	if err := client.API().Do(ctx, http.MethodGet, args[0], nil, &out); err != nil {
		return err
	}
	return PrintJSON(os.Stdout, out)
}

func displayName(snap session.Snapshot) string {
	switch {
	case snap.User == nil:
		return "unknown user"
	case snap.User.Name != "":
		return snap.User.Name
	case snap.User.Email != "":
		return snap.User.Email
	default:
		return string(snap.User.ID)
	}
}
