package app

import (
	"log/slog"
	"os"
)

// NewLogger returns the process-wide slog.Logger. Production (or an explicit
// LOG_FORMAT=json) gets the JSON handler; everything else stays on text for
// local readability. The environment name rides along on every line.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	var handler slog.Handler
	if cfg != nil && (cfg.LogFormat == "json" || cfg.IsProduction()) {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	if cfg != nil {
		logger = logger.With(slog.String("env", cfg.AppEnv))
	}
	return logger
}
