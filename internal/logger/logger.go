package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/akave-ai/devserve/internal/config"
)

// New returns the process logger. Operational logs go to stderr so stdout
// carries nothing but received reports.
func New(cfg *config.ObservabilityConfig) zerolog.Logger {
	return NewWithWriter(cfg, os.Stderr)
}

func NewWithWriter(cfg *config.ObservabilityConfig, w io.Writer) zerolog.Logger {
	if cfg == nil {
		cfg = config.DefaultObservabilityConfig()
	}

	out := w
	if cfg.Logging.Format == "console" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}

	ctx := zerolog.New(out).Level(cfg.LogLevel()).With().Timestamp()
	if cfg.ServiceName != "" {
		ctx = ctx.Str("service", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		ctx = ctx.Str("env", cfg.Environment)
	}
	return ctx.Logger()
}
