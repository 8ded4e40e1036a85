// Package app composes the story bot from its parts.
package app

import (
	"context"
	"fmt"

	"github.com/m3rciful/storybot/core/bootstrap"
	corecmd "github.com/m3rciful/storybot/core/cmd"
	coreconfig "github.com/m3rciful/storybot/core/config"
	tg "github.com/m3rciful/storybot/core/telegram"
	"github.com/m3rciful/storybot/core/telegram/commands"
	"github.com/m3rciful/storybot/core/telegram/router"
	"github.com/m3rciful/storybot/keepalive"
	"github.com/m3rciful/storybot/story"

	tele "gopkg.in/telebot.v4"
)

// App owns the caches and handlers of one bot process.
type App struct {
	cfg      *coreconfig.Config
	store    *story.Store
	seen     *story.SeenCache
	handlers *story.Handlers
}

// New creates the caches described by cfg. Close releases them.
func New(cfg *coreconfig.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config provided")
	}
	if cfg.Story.Path == "" {
		return nil, fmt.Errorf("app: story path is empty")
	}
	a := &App{
		cfg:   cfg,
		store: story.NewStore(cfg.Story.Path, cfg.Cache.ConfigTTL, cfg.Cache.ConfigCapacity),
		seen:  story.NewSeenCache(cfg.Cache.SeenTTL, cfg.Cache.SeenCapacity),
	}
	a.handlers = story.NewHandlers(a.store, a.seen, a.Stats)
	return a, nil
}

// Store returns the story document store.
func (a *App) Store() *story.Store { return a.store }

// Warmers loads the story document before the bot starts polling.
func (a *App) Warmers() []bootstrap.NamedWarmer {
	return []bootstrap.NamedWarmer{{Name: "story", Warmer: a.store}}
}

// Stats snapshots both caches.
func (a *App) Stats() story.Stats {
	return story.Stats{
		Document:  a.store.Metrics(),
		Loads:     a.store.Loads(),
		Seen:      a.seen.Metrics(),
		SeenUsers: a.seen.Len(),
	}
}

// Registry registers the bot's commands and callbacks. /stats exists only
// when an admin is configured.
func (a *App) Registry() (*tg.Registry, error) {
	reg := tg.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: a.handlers.Start, Description: "开始阅读故事"})
	reg.RegisterCommand("/help", commands.Command{Handler: a.handlers.Help, Description: "查看帮助"})
	if a.cfg.Telegram.AdminID != 0 {
		reg.RegisterCommand("/stats", commands.Command{
			Handler:     a.handlers.Stats,
			Description: "cache statistics",
			AdminOnly:   true,
			Hidden:      true,
		})
	}
	if err := reg.RegisterCallback(story.CallbackStartStory, a.handlers.StartStory); err != nil {
		return nil, err
	}
	if err := reg.RegisterCallback(story.CallbackContinueReading, a.handlers.ContinueReading); err != nil {
		return nil, err
	}
	return reg, nil
}

// Routes builds the telebot routes for reg.
func (a *App) Routes(reg *tg.Registry) []tg.Route {
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	return append(routes,
		router.CallbackRoute(reg, router.CallbackOptions{}),
		router.EventRoute(tele.OnMyChatMember, "welcome", a.handlers.Welcome),
		router.TextRoute(reg, router.TextOptions{}),
	)
}

// TelegramRunOptions implements the runner's TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	reg, err := a.Registry()
	if err != nil {
		return tg.RunOptions{}, fmt.Errorf("app: registry: %w", err)
	}
	return tg.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: tg.DefaultMiddlewares(a.cfg, nil),
		Routes:      a.Routes(reg),
		OnStop: func(context.Context, tg.Runtime) error {
			a.Close()
			return nil
		},
	}, nil
}

// BackgroundTasks implements the runner's BackgroundProvider.
func (a *App) BackgroundTasks() []corecmd.BackgroundTask {
	if a.cfg.KeepAlive.Disabled {
		return nil
	}
	srv := keepalive.New(a.cfg.KeepAlive.Listen)
	return []corecmd.BackgroundTask{{Name: "keepalive", Run: srv.Run}}
}

// Close stops the cache expiry loops.
func (a *App) Close() {
	a.store.Close()
	a.seen.Close()
}
