package cmd

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/storybot/core/config"
	coretelegram "github.com/m3rciful/storybot/core/telegram"
)

type fakeApp struct {
	tasks []BackgroundTask
}

func (a *fakeApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *fakeApp) BackgroundTasks() []BackgroundTask { return a.tasks }

func baseOptions(app TelegramApp) Options {
	return Options{
		DefaultConfigPath: "config.yaml",
		ConfigEnvVar:      "STORYBOT_TEST_CONFIG_PATH",
		LoadConfig: func(string) (ConfigCarrier, error) {
			return &coreconfig.Config{}, nil
		},
		Bootstrap: func(context.Context, ConfigCarrier) (TelegramApp, error) {
			return app, nil
		},
		ShutdownLogger: func() error { return nil },
	}
}

func TestRunStartsAndStopsBackgroundTasks(t *testing.T) {
	var started, stopped atomic.Bool
	app := &fakeApp{tasks: []BackgroundTask{{
		Name: "probe",
		Run: func(ctx context.Context) error {
			started.Store(true)
			<-ctx.Done()
			stopped.Store(true)
			return ctx.Err()
		},
	}}}

	opts := baseOptions(app)
	opts.RunTelegram = func(ctx context.Context, ro coretelegram.RunOptions) error {
		require.NotNil(t, ro.OnStart)
		require.NotNil(t, ro.OnStop)
		return nil
	}

	require.NoError(t, Run(opts))
	assert.True(t, started.Load())
	assert.True(t, stopped.Load())
}

func TestRunBackgroundFailureIsNotFatal(t *testing.T) {
	app := &fakeApp{tasks: []BackgroundTask{{
		Name: "broken",
		Run:  func(context.Context) error { return errors.New("listen: address in use") },
	}}}
	opts := baseOptions(app)
	opts.RunTelegram = func(context.Context, coretelegram.RunOptions) error { return nil }

	require.NoError(t, Run(opts))
}

func TestRunPropagatesBootstrapError(t *testing.T) {
	boom := errors.New("boom")
	opts := baseOptions(nil)
	opts.Bootstrap = func(context.Context, ConfigCarrier) (TelegramApp, error) { return nil, boom }

	err := Run(opts)
	require.ErrorIs(t, err, boom)
}

func TestRunRequiresLoader(t *testing.T) {
	require.Error(t, Run(Options{}))
}
