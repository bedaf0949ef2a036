package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	dashAuth "github.com/MrEthical07/dashAuth"
)

var version = "dev"

type cliConfig struct {
	baseURL     string
	sessionFile string
	jsonOutput  bool
	verbose     bool
}

func main() {
	cfg, command, args, err := parseArgs(os.Args[1:])
	if errors.Is(err, errShowUsage) {
		printUsage()
		if len(os.Args) == 1 {
			os.Exit(1)
		}
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}

	switch command {
	case "version":
		fmt.Printf("dashctl %s\n", version)
		return
	case "help", "--help", "-h":
		printUsage()
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := newClient(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	switch command {
	case "login":
		err = runLogin(ctx, client, args)
	case "logout":
		err = runLogout(ctx, client)
	case "whoami":
		err = runWhoami(ctx, client, cfg)
	case "status":
		err = runStatus(client, cfg)
	case "check":
		err = runCheck(ctx, client, args)
	case "search":
		err = runSearch(ctx, client, cfg, args)
	case "get":
		err = runGet(ctx, client, args)
	case "serve":
		err = runServe(ctx, client, args)
	default:
		err = fmt.Errorf("unknown command: %s", command)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var errShowUsage = errors.New("show usage")

func parseArgs(args []string) (cliConfig, string, []string, error) {
	cfg := cliConfig{
		sessionFile: os.Getenv("DASHCTL_SESSION_FILE"),
	}

	idx := 0
	for idx < len(args) {
		arg := args[idx]
		if !strings.HasPrefix(arg, "-") {
			break
		}
		switch arg {
		case "--help", "-h":
			return cfg, "", nil, errShowUsage
		case "--base-url", "-u":
			if idx+1 >= len(args) {
				return cfg, "", nil, fmt.Errorf("--base-url requires a value")
			}
			cfg.baseURL = args[idx+1]
			idx += 2
		case "--session":
			if idx+1 >= len(args) {
				return cfg, "", nil, fmt.Errorf("--session requires a value")
			}
			cfg.sessionFile = args[idx+1]
			idx += 2
		case "--json":
			cfg.jsonOutput = true
			idx++
		case "--verbose", "-v":
			cfg.verbose = true
			idx++
		default:
			return cfg, "", nil, fmt.Errorf("unknown flag: %s", arg)
		}
	}

	if idx >= len(args) {
		return cfg, "", nil, errShowUsage
	}

	return cfg, args[idx], args[idx+1:], nil
}

func printUsage() {
	fmt.Print(`Usage: dashctl [--base-url <url>] [--session <file>] [--json] [-v] <command>

Commands:
  login <email>             Sign in (password from DASHCTL_PASSWORD or stdin)
  logout                    End the session locally and on the server
  whoami                    Show the signed-in user
  status                    Show session state and resolved level
  check [--level L] [--roles a,b]
                            Evaluate a route requirement; exits 1 unless allowed
  search <resource> [query] Search users, factories or data
  get <path>                GET an API path with the session credential
  serve [--addr :9090]      Run a guarded local portal with /metrics
  version                   Print the version

Environment:
  DASH_*                    Client configuration (see dashAuth.LoadConfigFromEnv)
  DASHCTL_SESSION_FILE      Session file (default: <user config dir>/dashctl/session.json)
`)
}

func newClient(ctx context.Context, cli cliConfig) (*dashAuth.Client, error) {
	cfg, err := dashAuth.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	if cli.baseURL != "" {
		cfg.API.BaseURL = cli.baseURL
	}
	if cfg.Storage.Kind == dashAuth.StorageMemory {
		cfg.Storage.Kind = dashAuth.StorageFile
	}
	if cfg.Storage.Kind == dashAuth.StorageFile {
		path, err := sessionPath(cli.sessionFile)
		if err != nil {
			return nil, err
		}
		cfg.Storage.Path = path
	}

	level := slog.LevelWarn
	if cli.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := dashAuth.New().
		WithConfig(cfg).
		WithLogger(logger).
		WithAuditSink(dashAuth.NewSlogSink(logger)).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func sessionPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "dashctl", "session.json"), nil
}
