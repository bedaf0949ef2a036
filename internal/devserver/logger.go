package devserver

import (
	"io"
	"log/slog"
)

// NewLogger returns a JSON or text logger depending on cfg.LogFormat.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{AddSource: true}))
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{AddSource: true}))
}
