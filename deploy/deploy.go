package deploy

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/m3rciful/storybot/core/logger"
)

// Defaults for a newly created repl.
const (
	DefaultTitle    = "TelegramStoryBot"
	DefaultLanguage = "go"
)

// DefaultFiles is the file set pushed when none is given, as remote=local
// pairs. Directories are pushed recursively. It must hold everything
// `go run ./cmd/storybot` needs, checksums included.
var DefaultFiles = []string{
	"go.mod",
	"go.sum",
	"config.yaml",
	".replit",
	"app",
	"cmd/storybot",
	"core",
	"keepalive",
	"story",
}

// Env is the deployment environment.
type Env struct {
	Token   string `envconfig:"REPLIT_API_TOKEN"`
	ReplID  string `envconfig:"REPLIT_ID"`
	BaseURL string `envconfig:"REPLIT_API_URL"`
}

// LoadEnv reads Env from the process environment. The token is required.
func LoadEnv() (Env, error) {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return Env{}, fmt.Errorf("deploy: process env: %w", err)
	}
	env.Token = strings.TrimSpace(env.Token)
	env.ReplID = strings.TrimSpace(env.ReplID)
	env.BaseURL = strings.TrimSpace(env.BaseURL)
	if env.Token == "" {
		return Env{}, ErrMissingToken
	}
	if env.BaseURL == "" {
		env.BaseURL = DefaultBaseURL
	}
	return env, nil
}

// FileSpec maps a local file to its path inside the repl.
type FileSpec struct {
	Remote string
	Local  string
}

// ParseFileSpec parses "remote=local". A bare path is used for both sides.
func ParseFileSpec(s string) (FileSpec, error) {
	s = strings.TrimSpace(s)
	remote, local, found := strings.Cut(s, "=")
	if !found {
		local = remote
	}
	remote, local = strings.TrimSpace(remote), strings.TrimSpace(local)
	if remote == "" || local == "" {
		return FileSpec{}, fmt.Errorf("deploy: invalid file spec %q, want remote=local", s)
	}
	return FileSpec{Remote: remote, Local: local}, nil
}

// ParseFileSpecs parses every entry with ParseFileSpec.
func ParseFileSpecs(values []string) ([]FileSpec, error) {
	specs := make([]FileSpec, 0, len(values))
	for _, v := range values {
		spec, err := ParseFileSpec(v)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ReadFiles reads every local file. A directory contributes its files
// recursively, skipping tests and the directories the Go tool ignores.
// Any unreadable entry fails the whole set; nothing is pushed partially.
func ReadFiles(specs []FileSpec) (Files, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("deploy: no files to push")
	}
	files := make(Files, len(specs))
	add := func(remote, local string) error {
		if _, dup := files[remote]; dup {
			return fmt.Errorf("deploy: duplicate remote path %q", remote)
		}
		data, err := os.ReadFile(local)
		if err != nil {
			return fmt.Errorf("deploy: read %s: %w", local, err)
		}
		files[remote] = string(data)
		return nil
	}
	for _, spec := range specs {
		info, err := os.Stat(spec.Local)
		if err != nil {
			return nil, fmt.Errorf("deploy: read %s: %w", spec.Local, err)
		}
		if !info.IsDir() {
			if err := add(spec.Remote, spec.Local); err != nil {
				return nil, err
			}
			continue
		}
		err = filepath.WalkDir(spec.Local, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != spec.Local && ignoredDir(d.Name()) {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(d.Name(), "_test.go") {
				return nil
			}
			rel, err := filepath.Rel(spec.Local, p)
			if err != nil {
				return err
			}
			return add(path.Join(filepath.ToSlash(spec.Remote), filepath.ToSlash(rel)), p)
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func ignoredDir(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata"
}

// Options selects what Run does. A non-empty ReplID updates that repl;
// otherwise a new one is created with Title, Language and Private.
type Options struct {
	ReplID   string
	Title    string
	Language string
	Private  bool
	Files    Files
}

// Result describes a successful deployment.
type Result struct {
	Op   string
	Repl *Repl
}

// Run issues exactly one create or update call.
func Run(ctx context.Context, c *Client, opts Options) (*Result, error) {
	start := time.Now()
	op := "create"
	if strings.TrimSpace(opts.ReplID) != "" {
		op = "update"
	}

	var (
		repl *Repl
		err  error
	)
	switch op {
	case "update":
		repl, err = c.Update(ctx, opts.ReplID, opts.Files)
	default:
		repl, err = c.Create(ctx, CreateRequest{
			Title:     cmpOr(opts.Title, DefaultTitle),
			Language:  cmpOr(opts.Language, DefaultLanguage),
			IsPrivate: opts.Private,
			Files:     opts.Files,
		})
	}

	attrs := []slog.Attr{
		slog.String("event", "deploy."+op),
		slog.Int("files", len(opts.Files)),
		slog.Any("file_names", sortedKeys(opts.Files)),
		slog.Duration("duration", time.Since(start)),
	}
	if err != nil {
		attrs = append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))
		logger.Deploy.LogAttrs(ctx, slog.LevelError, "deploy failed", attrs...)
		return nil, err
	}
	attrs = append(attrs, slog.String("status", "ok"), slog.String("repl_id", repl.ID))
	logger.Deploy.LogAttrs(ctx, slog.LevelInfo, "deployed", attrs...)
	return &Result{Op: op, Repl: repl}, nil
}

func sortedKeys(files Files) []string {
	keys := make([]string, 0, len(files))
	for k := range files {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func cmpOr(v, fallback string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return fallback
}
