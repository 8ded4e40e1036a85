// Command deploy pushes the bot's files to a Replit repl, creating the repl
// when REPLIT_ID is not set.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/m3rciful/storybot/core/buildinfo"
	coreconfig "github.com/m3rciful/storybot/core/config"
	"github.com/m3rciful/storybot/core/logger"
	"github.com/m3rciful/storybot/deploy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type flags struct {
	files    []string
	title    string
	language string
	private  bool
	envFile  string
	logLevel string
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "deploy",
		Short:         "Push the story bot to Replit",
		Long:          "Create a repl with the bot's files, or update the repl named by REPLIT_ID.\nREPLIT_API_TOKEN must be set in the environment or the env file.",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := run(cmd, f)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "deploy failed:", err)
			}
			return err
		},
	}
	fl := cmd.Flags()
	fl.StringArrayVar(&f.files, "file", nil, "file to push as remote=local (repeatable; default: built-in set)")
	fl.StringVar(&f.title, "title", deploy.DefaultTitle, "title of a newly created repl")
	fl.StringVar(&f.language, "language", deploy.DefaultLanguage, "language of a newly created repl")
	fl.BoolVar(&f.private, "private", false, "create the repl as private")
	fl.StringVar(&f.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	fl.StringVar(&f.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	// godotenv.Load never overrides variables already set in the environment.
	if err := godotenv.Load(f.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", f.envFile, err)
	}

	env, err := deploy.LoadEnv()
	if err != nil {
		return err
	}

	values := f.files
	if len(values) == 0 {
		values = deploy.DefaultFiles
	}
	specs, err := deploy.ParseFileSpecs(values)
	if err != nil {
		return err
	}
	files, err := deploy.ReadFiles(specs)
	if err != nil {
		return err
	}

	client, err := deploy.NewClient(env.Token, deploy.WithBaseURL(env.BaseURL))
	if err != nil {
		return err
	}

	if err := logger.InitLogger(&coreconfig.Config{Logging: coreconfig.LoggingConfig{Format: "kv", Level: f.logLevel}}); err != nil {
		return err
	}
	defer func() { _ = logger.Shutdown() }()

	res, err := deploy.Run(cmd.Context(), client, deploy.Options{
		ReplID:   env.ReplID,
		Title:    f.title,
		Language: f.language,
		Private:  f.private,
		Files:    files,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch res.Op {
	case "update":
		fmt.Fprintln(out, "Repl updated successfully!")
	default:
		fmt.Fprintln(out, "Repl created successfully!")
	}
	if res.Repl.ID != "" {
		fmt.Fprintf(out, "id:  %s\n", res.Repl.ID)
	}
	if res.Repl.URL != "" {
		fmt.Fprintf(out, "url: %s\n", res.Repl.URL)
	}
	return nil
}
