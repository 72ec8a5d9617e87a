package engine

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	scrapequeue "github.com/alex-monroe/scrapequeue"
)

// NewLogger builds the process logger from cfg.LogLevel and cfg.LogFormat.
func NewLogger(w io.Writer, cfg scrapequeue.Config) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return nil, fmt.Errorf("engine: log level %q: %w", cfg.LogLevel, err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.LogFormat) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("engine: unknown log format %q", cfg.LogFormat)
}
