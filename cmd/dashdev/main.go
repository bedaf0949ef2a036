// Command dashdev runs a development backend for dashboard clients.
//
// It serves the login, profile, logout and search endpoints under DASHDEV_BASE_PATH
// (default /api) and seeds one account per access level, all sharing
// DASHDEV_SEED_PASSWORD. Without DASHDEV_REDIS_ADDR the revocation list lives in an
// embedded miniredis and is lost on exit.
//
// Run:
//
//	go run ./cmd/dashdev
//
// Then:
//
//	curl -s -X POST localhost:8080/api/users/login \
//	  -H 'Content-Type: application/json' \
//	  -d '{"email":"fum@dash.local","password":"dashboard"}'
//
//	curl -s -X POST localhost:8080/api/factories/search \
//	  -H "Authorization: Bearer <TOKEN>"
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/dashAuth/internal/devserver"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := devserver.LoadConfigFromEnv()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := devserver.NewLogger(cfg, os.Stdout)

	addr := cfg.RedisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			logger.Error("start embedded redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer mr.Close()
		addr = mr.Addr()
		logger.Info("using embedded redis", slog.String("addr", addr))
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var accounts []devserver.Account
	for _, u := range devserver.DefaultUsers() {
		a, err := devserver.NewAccount(u, cfg.SeedPassword)
		if err != nil {
			logger.Error("seed account", slog.Any("error", err))
			os.Exit(1)
		}
		accounts = append(accounts, a)
	}

	srv, err := devserver.New(cfg, accounts, devserver.NewRevocations(rdb, cfg.RedisPrefix), devserver.WithLogger(logger))
	if err != nil {
		logger.Error("build server", slog.Any("error", err))
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.Addr), slog.String("base_path", cfg.BasePath))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
