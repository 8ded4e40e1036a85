// Package bootstrap runs the startup steps shared between bot binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/storybot/core/config"
	"github.com/m3rciful/storybot/core/logger"
)

// Options control the generic bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Warmers    []NamedWarmer
}

// Run initializes the logger and then runs every warmer in order. The first
// failing warmer aborts the pipeline.
func Run(ctx context.Context, opts Options) error {
	if opts.Config == nil {
		return fmt.Errorf("bootstrap: nil config provided")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	for _, w := range opts.Warmers {
		if w.Warmer == nil {
			continue
		}
		start := time.Now()
		if err := w.Warm(ctx); err != nil {
			return fmt.Errorf("bootstrap: warm %s: %w", w.Name, err)
		}
		logger.Info(ctx, "app", "warm",
			slog.String("status", "ok"),
			slog.String("name", w.Name),
			slog.Duration("duration", time.Since(start)),
		)
	}
	return nil
}
