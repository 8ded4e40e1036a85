package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/storybot/core/config"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunRequiresConfig(t *testing.T) {
	err := Run(context.Background(), Options{LoggerInit: noLogger})
	require.Error(t, err)
}

func TestRunWarmersInOrder(t *testing.T) {
	var order []string
	warm := func(name string) NamedWarmer {
		return NamedWarmer{Name: name, Warmer: WarmerFunc(func(context.Context) error {
			order = append(order, name)
			return nil
		})}
	}

	err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Warmers:    []NamedWarmer{warm("a"), {Name: "empty"}, warm("b")},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestRunStopsOnWarmerError(t *testing.T) {
	boom := errors.New("boom")
	called := false
	err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Warmers: []NamedWarmer{
			{Name: "story", Warmer: WarmerFunc(func(context.Context) error { return boom })},
			{Name: "next", Warmer: WarmerFunc(func(context.Context) error { called = true; return nil })},
		},
	})
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "warm story")
	assert.False(t, called)
}

func TestRunLoggerInitError(t *testing.T) {
	boom := errors.New("boom")
	err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return boom },
	})
	require.ErrorIs(t, err, boom)
}
