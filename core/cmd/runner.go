// Package cmd wires configuration, bootstrap and the Telegram runtime into a
// process entry point.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/storybot/core/config"
	"github.com/m3rciful/storybot/core/logger"
	coretelegram "github.com/m3rciful/storybot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// BackgroundTask is a long-running companion of the bot, e.g. an HTTP
// responder. Run must return once ctx is done.
type BackgroundTask struct {
	Name string
	Run  func(ctx context.Context) error
}

// BackgroundProvider is implemented by apps that need companion tasks.
type BackgroundProvider interface {
	BackgroundTasks() []BackgroundTask
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error

	// Context overrides the signal-bound root context; tests use it.
	Context context.Context
}

// Run loads configuration, bootstraps the Telegram app, starts background
// tasks and runs the bot until an interrupt. Background task failures are
// logged and never stop the bot.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("cmd: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}

	root := opts.Context
	if root == nil {
		root = context.Background()
	}
	ctx, cancel := signal.NotifyContext(root, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}

	startedAt := time.Now()
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.L.With("component", "app").Info("app ready",
			slog.String("event", "ready"),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.L.With("component", "app").Info("shutting down...",
			slog.String("event", "shutdown"),
		)
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	var wg sync.WaitGroup
	if bp, ok := application.(BackgroundProvider); ok {
		for _, task := range bp.BackgroundTasks() {
			if task.Run == nil {
				continue
			}
			wg.Add(1)
			task := task
			go func() {
				defer wg.Done()
				runBackground(ctx, task)
			}()
		}
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}

	runErr := run(ctx, runOpts)
	cancel()
	wg.Wait()
	return runErr
}

func runBackground(ctx context.Context, task BackgroundTask) {
	lg := logger.L.With("component", "app", "task", task.Name)
	lg.Info("background task started", slog.String("event", "task.start"))
	err := task.Run(ctx)
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		lg.Info("background task stopped", slog.String("event", "task.stop"))
	default:
		lg.Error("background task failed",
			slog.String("event", "task.fail"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}
