// Command storybot runs the Telegram story bot with its keep-alive page.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/m3rciful/storybot/app"
	"github.com/m3rciful/storybot/core/bootstrap"
	corecmd "github.com/m3rciful/storybot/core/cmd"
	coreconfig "github.com/m3rciful/storybot/core/config"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return coreconfig.Load(path)
		},
		Bootstrap: func(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.CoreConfig()
			a, err := app.New(cfg)
			if err != nil {
				return nil, err
			}
			if err := bootstrap.Run(ctx, bootstrap.Options{Config: cfg, Warmers: a.Warmers()}); err != nil {
				a.Close()
				return nil, fmt.Errorf("storybot: %w", err)
			}
			return a, nil
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
