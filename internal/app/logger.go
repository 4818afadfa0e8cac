package app

import (
	"log/slog"
	"os"
)

// NewLogger builds the process-wide slog.Logger. LogFormat "json"
// selects the JSON handler for log shippers, anything else gets the
// text handler for local runs. Both include source locations.
func NewLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{AddSource: true}
	if cfg != nil && cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
